package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Kikk79/docstore/pkg/metrics"
	"github.com/Kikk79/docstore/pkg/operation"
)

// operationMetrics is the Prometheus implementation of
// operation.Metrics.
type operationMetrics struct {
	submitted    prometheus.Counter
	coalesced    prometheus.Counter
	completed    prometheus.Counter
	failed       prometheus.Counter
	cancelled    prometheus.Counter
	loadDuration prometheus.Histogram
	queueDepth   prometheus.Gauge
}

// NewOperationMetrics creates a Prometheus-backed operation.Metrics.
// Returns nil when metrics are disabled.
func NewOperationMetrics() operation.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &operationMetrics{
		submitted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docstore_operations_submitted_total",
			Help: "Total number of enqueued load operations",
		}),
		coalesced: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docstore_operations_coalesced_total",
			Help: "Total number of submissions attached to an in-flight operation",
		}),
		completed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docstore_operations_completed_total",
			Help: "Total number of successfully completed operations",
		}),
		failed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docstore_operations_failed_total",
			Help: "Total number of failed operations",
		}),
		cancelled: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "docstore_operations_cancelled_total",
			Help: "Total number of cancelled operations",
		}),
		loadDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "docstore_operations_duration_milliseconds",
			Help: "Duration of completed load operations",
			Buckets: []float64{
				1, 5, 10, 50, 100, 500, 1000, 5000, 30000,
			},
		}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "docstore_operations_queue_depth",
			Help: "Current number of queued operations",
		}),
	}
}

func (m *operationMetrics) RecordSubmitted() {
	m.submitted.Inc()
}

func (m *operationMetrics) RecordCoalesced() {
	m.coalesced.Inc()
}

func (m *operationMetrics) RecordCompleted(duration time.Duration) {
	m.completed.Inc()
	m.loadDuration.Observe(float64(duration.Milliseconds()))
}

func (m *operationMetrics) RecordFailed() {
	m.failed.Inc()
}

func (m *operationMetrics) RecordCancelled() {
	m.cancelled.Inc()
}

func (m *operationMetrics) RecordQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}
