// Package metrics holds the Prometheus collectors for engine instantiation
// and foreign memory traffic. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scanx"

// Metrics tracks engine lifecycle and marshaling activity
type Metrics struct {
	// Lifecycle
	instantiations  *prometheus.CounterVec   // Instantiations started by variant
	failures        *prometheus.CounterVec   // Instantiations that failed by variant
	reuses          *prometheus.CounterVec   // Eager prepares served from cache
	instantiateTime *prometheus.HistogramVec // Time to a usable instance

	// Foreign memory
	allocations *prometheus.CounterVec // Bridge mallocs by variant
	frees       *prometheus.CounterVec // Bridge frees by variant
	bytesCopied *prometheus.CounterVec // Bytes copied into linear memory
	callErrors  *prometheus.CounterVec // Failed entry point calls by operation
}

// New creates the collectors and registers them with reg.
// A nil registerer disables metrics and returns nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		instantiations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "instantiations_total",
			Help:      "Engine instantiations started",
		}, []string{"variant"}),

		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "instantiation_failures_total",
			Help:      "Engine instantiations that failed",
		}, []string{"variant"}),

		reuses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "cache_reuses_total",
			Help:      "Eager prepares that reused a cached instantiation",
		}, []string{"variant"}),

		instantiateTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "instantiation_seconds",
			Help:      "Time from instantiation start to a usable engine",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"variant"}),

		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "allocations_total",
			Help:      "Foreign buffers allocated by the bridge",
		}, []string{"variant"}),

		frees: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "frees_total",
			Help:      "Foreign buffers freed by the bridge",
		}, []string{"variant"}),

		bytesCopied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "bytes_copied_total",
			Help:      "Bytes copied from the host into linear memory",
		}, []string{"variant"}),

		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "call_errors_total",
			Help:      "Engine entry point calls that returned an error",
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{
		m.instantiations, m.failures, m.reuses, m.instantiateTime,
		m.allocations, m.frees, m.bytesCopied, m.callErrors,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// InstantiationStarted records the start of an instantiation
func (m *Metrics) InstantiationStarted(variant string) {
	if m == nil {
		return
	}
	m.instantiations.WithLabelValues(variant).Inc()
}

// InstantiationDone records the outcome of an instantiation
func (m *Metrics) InstantiationDone(variant string, took time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.failures.WithLabelValues(variant).Inc()
		return
	}
	m.instantiateTime.WithLabelValues(variant).Observe(took.Seconds())
}

// Reused records an eager prepare served by a cached instantiation
func (m *Metrics) Reused(variant string) {
	if m == nil {
		return
	}
	m.reuses.WithLabelValues(variant).Inc()
}

// Allocated records a bridge allocation of n bytes
func (m *Metrics) Allocated(variant string, n int) {
	if m == nil {
		return
	}
	m.allocations.WithLabelValues(variant).Inc()
	m.bytesCopied.WithLabelValues(variant).Add(float64(n))
}

// Freed records a bridge free
func (m *Metrics) Freed(variant string) {
	if m == nil {
		return
	}
	m.frees.WithLabelValues(variant).Inc()
}

// CallFailed records a failed entry point call
func (m *Metrics) CallFailed(operation string) {
	if m == nil {
		return
	}
	m.callErrors.WithLabelValues(operation).Inc()
}
