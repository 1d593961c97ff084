package metrics

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"cryptodash/internal/refresh"
	"cryptodash/logger"
	"cryptodash/reader/coingecko"
)

type published struct {
	name  string
	value float64
	unit  cwtypes.StandardUnit
	dims  map[string]string
}

func capturePublishes(t *testing.T) *[]published {
	t.Helper()
	resetSubscribers()

	var got []published
	putMetric = func(_ context.Context, name string, value float64, unit cwtypes.StandardUnit, dims map[string]string) {
		got = append(got, published{name, value, unit, dims})
	}
	t.Cleanup(func() { putMetric = logger.PublishMetric })

	id := ForwardToCloudWatch(context.Background())
	t.Cleanup(func() { Unsubscribe(id) })
	return &got
}

func row(namespace string, p published) []string {
	keys := make([]string, 0, len(p.dims))
	for k := range p.dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := []string{namespace, p.name}
	for _, k := range keys {
		out = append(out, k, p.dims[k])
	}
	return out
}

func TestForwardToCloudWatchUnits(t *testing.T) {
	got := capturePublishes(t)

	r := NewRecorder(nil)
	r.CycleFinished("portfolio", refresh.StatusReady, 1500*time.Millisecond)

	if len(*got) != 2 {
		t.Fatalf("expected two publishes, got %d", len(*got))
	}
	ready, duration := (*got)[0], (*got)[1]
	if ready.name != "refresh_ready" || ready.value != 1 || ready.unit != cwtypes.StandardUnitCount {
		t.Fatalf("unexpected publish: %+v", ready)
	}
	if duration.name != "refresh_duration_ms" || duration.value != 1500 || duration.unit != cwtypes.StandardUnitMilliseconds {
		t.Fatalf("unexpected publish: %+v", duration)
	}
}

func TestPublishedDimensionsMatchDashboardWidgets(t *testing.T) {
	got := capturePublishes(t)

	r := NewRecorder(nil)
	r.FetchFailed("top-coins", 0, &coingecko.FetchError{Kind: coingecko.KindRateLimited})
	r.FetchFailed("top-coins", 1, errors.New("boom"))
	r.CycleFinished("top-coins", refresh.StatusError, time.Second)
	r.CycleFinished("top-coins", refresh.StatusReady, time.Second)

	const ns = "CryptoDash"
	queried := map[string][]string{}
	for _, w := range logger.WidgetMetrics(ns, "top-coins") {
		queried[w[1]] = w
	}

	seen := map[string]bool{}
	for _, p := range *got {
		want, charted := queried[p.name]
		if !charted {
			continue
		}
		seen[p.name] = true
		if have := row(ns, p); !reflect.DeepEqual(have, want) {
			t.Fatalf("%s published as %v, widget queries %v", p.name, have, want)
		}
	}
	for name := range queried {
		if !seen[name] {
			t.Fatalf("widget metric %s never published", name)
		}
	}
}
