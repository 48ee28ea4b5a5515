package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Store operation counters
	StoreOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "store_operations_total",
			Help:      "Total bounded-store operations",
		},
		[]string{"operation", "status"},
	)

	// Evictions triggered by new conversations at capacity
	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "evictions_total",
			Help:      "Conversations evicted by the FIFO bound",
		},
	)

	// Capacity invariant violations detected and self-healed
	CapacityViolationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "capacity_violations_total",
			Help:      "Capacity invariant violations detected in stored state",
		},
	)

	// Hydrated per-identity stores currently held by the registry
	ActiveStores = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "active_stores",
			Help:      "Per-identity stores resident in the registry",
		},
	)

	// Completion streaming
	CompletionChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "completion_chunks_total",
			Help:      "Streamed completion chunks received from the model provider",
		},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "completion_duration_seconds",
			Help:      "End-to-end completion turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"status"},
	)

	// Persistence write duration
	StateWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "goldfish",
			Subsystem: "chat",
			Name:      "state_write_duration_seconds",
			Help:      "Full-unit state persistence duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordStoreOp records a bounded-store operation outcome
func RecordStoreOp(operation, status string) {
	StoreOpsTotal.WithLabelValues(operation, status).Inc()
}
