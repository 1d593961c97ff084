package dashboard

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"cryptodash/internal/metrics"
)

const defaultHistory = 200

// ring keeps the last limit items appended to it.
type ring[T any] struct {
	mu    sync.RWMutex
	items []T
	limit int
}

func newRing[T any](limit int) *ring[T] {
	if limit <= 0 {
		limit = defaultHistory
	}
	return &ring[T]{limit: limit}
}

func (r *ring[T]) add(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	if over := len(r.items) - r.limit; over > 0 {
		r.items = append([]T(nil), r.items[over:]...)
	}
}

func (r *ring[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]T(nil), r.items...)
}

// feedEntry is a refresh event as served on /api/events.
type feedEntry struct {
	Time       time.Time `json:"time"`
	Panel      string    `json:"panel"`
	Event      string    `json:"event"`
	Status     string    `json:"status,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Attempt    int       `json:"attempt,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

func toFeedEntry(ev metrics.Event) feedEntry {
	entry := feedEntry{Time: ev.Time, Panel: ev.Panel, Event: string(ev.Type)}
	switch ev.Type {
	case metrics.EventFetchFailed:
		entry.Kind = ev.Kind
		entry.Attempt = ev.Attempt + 1
	case metrics.EventCycleFinished:
		entry.Status = ev.Status.String()
		entry.DurationMs = ev.Duration.Milliseconds()
	}
	return entry
}

// eventFeed retains the most recent refresh events.
type eventFeed struct {
	*ring[feedEntry]
}

func newEventFeed(limit int) *eventFeed {
	return &eventFeed{newRing[feedEntry](limit)}
}

func (f *eventFeed) handle(ev metrics.Event) {
	f.add(toFeedEntry(ev))
}

// logRecord is a captured log entry as served on /api/logs.
type logRecord struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// logStore is a logrus hook keeping recent info-and-above entries.
type logStore struct {
	*ring[logRecord]
	closed atomic.Bool
}

func newLogStore(limit int) *logStore {
	return &logStore{ring: newRing[logRecord](limit)}
}

func (s *logStore) Levels() []logrus.Level {
	return logrus.AllLevels[:logrus.InfoLevel+1]
}

func (s *logStore) Fire(entry *logrus.Entry) error {
	if s.closed.Load() {
		return nil
	}

	rec := logRecord{Timestamp: entry.Time, Level: entry.Level.String(), Message: entry.Message}
	for k, v := range entry.Data {
		if k == "component" {
			rec.Component, _ = v.(string)
			continue
		}
		if rec.Fields == nil {
			rec.Fields = make(map[string]interface{}, len(entry.Data))
		}
		switch val := v.(type) {
		case error:
			rec.Fields[k] = val.Error()
		case fmt.Stringer:
			rec.Fields[k] = val.String()
		default:
			rec.Fields[k] = val
		}
	}
	s.add(rec)
	return nil
}

func (s *logStore) close() {
	s.closed.Store(true)
}
