// Package metrics implements the core thread's per-iteration
// profiling (spec §4.9 step 5) and the event payload's CPU/DSP load
// fields (spec §6): operation counters, duration histograms, error
// counters, pool hit-rate, and host CPU load sampling, exported for
// Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the facade every subsystem reports through, independent
// of whether the backing store is real Prometheus collectors or an
// in-memory double for tests (see TestRecorder).
type Recorder interface {
	RecordOperation(operation, status string)
	RecordDuration(operation string, seconds float64)
	RecordError(operation, errorType string)
	RecordPoolHit(pool string, hit bool)
	SetCPULoad(percent float64)
}

// PrometheusRecorder is the production Recorder, registering every
// series under the "va" namespace.
type PrometheusRecorder struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	errors     *prometheus.CounterVec
	poolHits   *prometheus.CounterVec
	cpuLoad    prometheus.Gauge
}

// NewPrometheusRecorder registers the core's metric series against reg.
// Pass prometheus.DefaultRegisterer for the global registry, or a
// fresh prometheus.NewRegistry() in tests to avoid collisions.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "va",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Count of core-thread and graph operations by outcome status.",
		}, []string{"operation", "status"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "va",
			Subsystem: "core",
			Name:      "operation_duration_seconds",
			Help:      "Per-iteration duration of core-thread and graph operations (spec §4.9 step 5).",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"operation"}),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "va",
			Subsystem: "core",
			Name:      "errors_total",
			Help:      "Count of errors surfaced by core-thread and graph operations.",
		}, []string{"operation", "error_type"}),
		poolHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "va",
			Subsystem: "pool",
			Name:      "acquire_total",
			Help:      "Pool acquisitions, split by hit/miss (spec §4.1).",
		}, []string{"pool", "result"}),
		cpuLoad: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "va",
			Subsystem: "host",
			Name:      "cpu_load_percent",
			Help:      "Host CPU load percentage, sampled periodically (spec §6 event payload).",
		}),
	}
}

func (r *PrometheusRecorder) RecordOperation(operation, status string) {
	r.operations.WithLabelValues(operation, status).Inc()
}

func (r *PrometheusRecorder) RecordDuration(operation string, seconds float64) {
	r.durations.WithLabelValues(operation).Observe(seconds)
}

func (r *PrometheusRecorder) RecordError(operation, errorType string) {
	r.errors.WithLabelValues(operation, errorType).Inc()
}

func (r *PrometheusRecorder) RecordPoolHit(pool string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.poolHits.WithLabelValues(pool, result).Inc()
}

func (r *PrometheusRecorder) SetCPULoad(percent float64) {
	r.cpuLoad.Set(percent)
}
