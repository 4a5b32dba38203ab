// Package metrics provides bridge metrics for observability
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BridgeMetrics contains Prometheus metrics for the PCM bridge adapter.
// All methods are nil-safe so instrumentation points can be left wired
// when metrics are disabled.
type BridgeMetrics struct {
	registry *prometheus.Registry

	transfersTotal     *prometheus.CounterVec
	framesWrittenTotal prometheus.Counter
	wouldBlocksTotal   prometheus.Counter
	lifecycleOpsTotal  *prometheus.CounterVec
	lifecycleErrors    *prometheus.CounterVec
	drainDuration      prometheus.Histogram
	drainAbandoned     prometheus.Counter
}

// NewBridgeMetrics creates and registers the bridge metric collectors.
func NewBridgeMetrics(registry *prometheus.Registry) (*BridgeMetrics, error) {
	m := &BridgeMetrics{registry: registry}

	m.transfersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmbridge_transfers_total",
			Help: "Number of transfer callbacks by result",
		},
		[]string{"result"},
	)

	m.framesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcmbridge_frames_written_total",
			Help: "Cumulative frames accepted by the engine",
		},
	)

	m.wouldBlocksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcmbridge_would_blocks_total",
			Help: "Non-blocking transfers that could not accept any frames",
		},
	)

	m.lifecycleOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmbridge_lifecycle_ops_total",
			Help: "Lifecycle callbacks by operation",
		},
		[]string{"op"},
	)

	m.lifecycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pcmbridge_lifecycle_errors_total",
			Help: "Failed lifecycle callbacks by operation",
		},
		[]string{"op"},
	)

	m.drainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pcmbridge_drain_duration_seconds",
			Help:    "Wall time spent waiting in drain",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	m.drainAbandoned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pcmbridge_drain_abandoned_total",
			Help: "Drains abandoned after the zero-read grace window",
		},
	)

	collectors := []prometheus.Collector{
		m.transfersTotal,
		m.framesWrittenTotal,
		m.wouldBlocksTotal,
		m.lifecycleOpsTotal,
		m.lifecycleErrors,
		m.drainDuration,
		m.drainAbandoned,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RecordTransfer counts one transfer callback with its result label.
func (m *BridgeMetrics) RecordTransfer(result string, frames int) {
	if m == nil {
		return
	}
	m.transfersTotal.WithLabelValues(result).Inc()
	if frames > 0 {
		m.framesWrittenTotal.Add(float64(frames))
	}
}

// RecordWouldBlock counts a non-blocking transfer that accepted nothing.
func (m *BridgeMetrics) RecordWouldBlock() {
	if m == nil {
		return
	}
	m.wouldBlocksTotal.Inc()
}

// RecordLifecycleOp counts a lifecycle callback invocation.
func (m *BridgeMetrics) RecordLifecycleOp(op string) {
	if m == nil {
		return
	}
	m.lifecycleOpsTotal.WithLabelValues(op).Inc()
}

// RecordLifecycleError counts a failed lifecycle callback.
func (m *BridgeMetrics) RecordLifecycleError(op string) {
	if m == nil {
		return
	}
	m.lifecycleErrors.WithLabelValues(op).Inc()
}

// RecordDrainDuration observes the wall time of one drain.
func (m *BridgeMetrics) RecordDrainDuration(seconds float64) {
	if m == nil {
		return
	}
	m.drainDuration.Observe(seconds)
}

// RecordDrainAbandoned counts a drain given up after the grace window.
func (m *BridgeMetrics) RecordDrainAbandoned() {
	if m == nil {
		return
	}
	m.drainAbandoned.Inc()
}
