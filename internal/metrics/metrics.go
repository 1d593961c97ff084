// Package metrics records refresh outcomes.
//
// Registers, on a private registry:
//
//	#cryptodash_fetch_failures_total{panel,kind}
//	#cryptodash_refresh_cycles_total{panel,status}
//	#cryptodash_refresh_cycle_duration_seconds{panel}
//	#cryptodash_panel_status{panel,status}
//	#go_* and process_* system metrics
//
// The dashboard exposes them on /metrics.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptodash/internal/refresh"
	"cryptodash/logger"
	"cryptodash/reader/coingecko"
)

const component = "refresh"

var panelStatuses = []refresh.Status{refresh.StatusIdle, refresh.StatusLoading, refresh.StatusError, refresh.StatusReady}

// Recorder turns refresh notifications into Prometheus series and feed
// events. It implements refresh.Observer.
type Recorder struct {
	registry      *prometheus.Registry
	fetchFailures *prometheus.CounterVec
	cycles        *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	panelStatus   *prometheus.GaugeVec
	log           *logger.Log
}

// NewRecorder builds a recorder on a private registry.
func NewRecorder(log *logger.Log) *Recorder {
	if log == nil {
		log = logger.GetLogger()
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptodash_fetch_failures_total",
				Help: "Number of failed fetch attempts, including retries",
			},
			[]string{"panel", "kind"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptodash_refresh_cycles_total",
				Help: "Number of completed refresh cycles by outcome",
			},
			[]string{"panel", "status"},
		),
		cycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptodash_refresh_cycle_duration_seconds",
				Help:    "Wall time of a refresh cycle including retry backoff",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"panel"},
		),
		panelStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptodash_panel_status",
				Help: "1 for the panel's current status, 0 otherwise",
			},
			[]string{"panel", "status"},
		),
		log: log,
	}

	r.registry.MustRegister(
		r.fetchFailures,
		r.cycles,
		r.cycleDuration,
		r.panelStatus,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Gatherer exposes the registry for the dashboard and tests.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Track marks panel as idle until its first cycle reports.
func (r *Recorder) Track(panel string) {
	r.setStatus(panel, refresh.StatusIdle)
}

func (r *Recorder) FetchFailed(panel string, attempt int, err error) {
	kind := ErrorKind(err)
	r.fetchFailures.WithLabelValues(panel, kind).Inc()
	publish(r.log, Event{Type: EventFetchFailed, Panel: panel, Kind: kind, Attempt: attempt})
}

func (r *Recorder) CycleFinished(panel string, status refresh.Status, duration time.Duration) {
	r.cycles.WithLabelValues(panel, status.String()).Inc()
	r.cycleDuration.WithLabelValues(panel).Observe(duration.Seconds())
	r.setStatus(panel, status)

	publish(r.log, Event{Type: EventCycleFinished, Panel: panel, Status: status, Duration: duration})
}

func (r *Recorder) setStatus(panel string, current refresh.Status) {
	for _, s := range panelStatuses {
		v := 0.0
		if s == current {
			v = 1
		}
		r.panelStatus.WithLabelValues(panel, s.String()).Set(v)
	}
}

// ErrorKind names the failure class of err for labels and events.
func ErrorKind(err error) string {
	var fe *coingecko.FetchError
	if errors.As(err, &fe) {
		return fe.Kind.String()
	}
	return "unknown"
}
