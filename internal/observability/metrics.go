package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	httpRequestsTotal      *prometheus.CounterVec
	httpLatencySeconds     *prometheus.HistogramVec
	storeOperationsTotal   *prometheus.CounterVec
	storeOperationSeconds  *prometheus.HistogramVec
	gradingRunsTotal       *prometheus.CounterVec
	gradingDurationSeconds prometheus.Histogram
	previewHandlesActive   prometheus.Gauge
	notificationsTotal     *prometheus.CounterVec
	streamClientsActive    prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelligrade_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intelligrade_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		storeOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelligrade_store_operations_total",
			Help: "Attachment store operations by collection, operation and outcome.",
		}, []string{"collection", "operation", "outcome"})

		storeOperationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intelligrade_store_operation_seconds",
			Help:    "Latency of attachment store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "operation"})

		gradingRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelligrade_grading_runs_total",
			Help: "Grading runs by final status.",
		}, []string{"status"})

		gradingDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intelligrade_grading_duration_seconds",
			Help:    "Wall-clock duration of grading runs.",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		})

		previewHandlesActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intelligrade_preview_handles_active",
			Help: "Preview handles currently issued by the in-process registry.",
		})

		notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intelligrade_notifications_total",
			Help: "User notifications emitted by level.",
		}, []string{"level"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intelligrade_stream_clients_active",
			Help: "Connected notification and grading stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			storeOperationsTotal,
			storeOperationSeconds,
			gradingRunsTotal,
			gradingDurationSeconds,
			previewHandlesActive,
			notificationsTotal,
			streamClientsActive,
		)
	})
}

// HTTPRequests exposes the API request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the API latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// StoreOperations exposes the attachment store operation counter.
func StoreOperations() *prometheus.CounterVec {
	RegisterMetrics()
	return storeOperationsTotal
}

// StoreLatency exposes the attachment store latency histogram.
func StoreLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return storeOperationSeconds
}

// GradingRuns exposes the grading outcome counter.
func GradingRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return gradingRunsTotal
}

// GradingDuration exposes the grading duration histogram.
func GradingDuration() prometheus.Histogram {
	RegisterMetrics()
	return gradingDurationSeconds
}

// PreviewHandles exposes the active preview handle gauge.
func PreviewHandles() prometheus.Gauge {
	RegisterMetrics()
	return previewHandlesActive
}

// Notifications exposes the notification counter.
func Notifications() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsTotal
}

// StreamClients exposes the connected stream client gauge.
func StreamClients() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
