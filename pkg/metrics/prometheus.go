package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	refreshes    *prometheus.CounterVec
	lookups      *prometheus.CounterVec
	runsDropped  *prometheus.CounterVec
	sweptEntries *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		refreshes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_refresh_total",
				Help: "Per-target refresh outcomes by cache and provider tier",
			},
			[]string{"cache", "tier", "outcome"},
		),
		lookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_lookups_total",
				Help: "Cache reads by result",
			},
			[]string{"cache", "hit"},
		),
		runsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_refresh_runs_dropped_total",
				Help: "Scheduled cycles skipped because a cycle was still running",
			},
			[]string{"cache"},
		),
		sweptEntries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_swept_total",
				Help: "Expired entries removed by the sweeper",
			},
			[]string{"cache"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRefresh(cache, tier, outcome string) {
	r.refreshes.WithLabelValues(cache, tier, outcome).Inc()
}

func (r *Recorder) RecordCacheLookup(cache string, hit bool) {
	r.lookups.WithLabelValues(cache, strconv.FormatBool(hit)).Inc()
}

func (r *Recorder) RecordRunDropped(cache string) {
	r.runsDropped.WithLabelValues(cache).Inc()
}

func (r *Recorder) RecordSwept(cache string, n int) {
	if n > 0 {
		r.sweptEntries.WithLabelValues(cache).Add(float64(n))
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
