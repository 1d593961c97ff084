package dashboard

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"cryptodash/internal/metrics"
	"cryptodash/internal/refresh"
)

func TestRingKeepsMostRecent(t *testing.T) {
	r := newRing[int](2)
	for i := 0; i < 5; i++ {
		r.add(i)
	}

	snapshot := r.snapshot()
	if len(snapshot) != 2 || snapshot[0] != 3 || snapshot[1] != 4 {
		t.Fatalf("unexpected items retained: %v", snapshot)
	}
}

func TestEventFeedEntries(t *testing.T) {
	feed := newEventFeed(0)
	feed.handle(metrics.Event{Time: time.Unix(1, 0), Type: metrics.EventFetchFailed, Panel: "top-coins", Kind: "rate_limited", Attempt: 0})
	feed.handle(metrics.Event{Time: time.Unix(2, 0), Type: metrics.EventCycleFinished, Panel: "top-coins", Status: refresh.StatusError, Duration: 3 * time.Second})

	entries := feed.snapshot()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if e := entries[0]; e.Event != "fetch_failed" || e.Kind != "rate_limited" || e.Attempt != 1 || e.Status != "" {
		t.Fatalf("unexpected failure entry: %+v", e)
	}
	if e := entries[1]; e.Event != "cycle_finished" || e.Status != "error" || e.DurationMs != 3000 || e.Kind != "" {
		t.Fatalf("unexpected cycle entry: %+v", e)
	}
}

func TestLogStoreCapturesEntries(t *testing.T) {
	store := newLogStore(3)
	entry := logrus.NewEntry(logrus.New())
	entry.Time = time.Unix(10, 0)
	entry.Level = logrus.WarnLevel
	entry.Message = "warning"
	entry.Data = logrus.Fields{"component": "refresh", "panel": "portfolio", "error": errors.New("boom")}

	if err := store.Fire(entry); err != nil {
		t.Fatalf("store.Fire returned error: %v", err)
	}

	snapshot := store.snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(snapshot))
	}
	rec := snapshot[0]
	if rec.Component != "refresh" || rec.Fields["panel"] != "portfolio" || rec.Fields["error"] != "boom" {
		t.Fatalf("unexpected snapshot data: %#v", rec)
	}
	if _, ok := rec.Fields["component"]; ok {
		t.Fatalf("component should not be repeated in fields: %#v", rec.Fields)
	}
}

func TestLogStoreLevels(t *testing.T) {
	levels := newLogStore(1).Levels()
	if len(levels) != 5 || levels[len(levels)-1] != logrus.InfoLevel {
		t.Fatalf("unexpected levels: %v", levels)
	}
}

func TestLogStoreRespectsLimitAndClose(t *testing.T) {
	store := newLogStore(2)
	for i := 0; i < 4; i++ {
		entry := logrus.NewEntry(logrus.New())
		entry.Message = "msg"
		entry.Level = logrus.InfoLevel
		entry.Data = logrus.Fields{"index": i}
		if err := store.Fire(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if n := len(store.snapshot()); n != 2 {
		t.Fatalf("expected 2 entries after pruning, got %d", n)
	}

	store.close()
	entry := logrus.NewEntry(logrus.New())
	entry.Message = "ignored"
	if err := store.Fire(entry); err != nil {
		t.Fatalf("unexpected error after close: %v", err)
	}
	if n := len(store.snapshot()); n != 2 {
		t.Fatalf("store accepted entries after close")
	}
}
