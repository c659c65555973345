package operation

import "time"

// Metrics receives manager observability events.
//
// A nil Metrics disables instrumentation with zero overhead. The
// Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// RecordSubmitted records a newly enqueued operation.
	RecordSubmitted()

	// RecordCoalesced records a submission attached to an existing
	// operation.
	RecordCoalesced()

	// RecordCompleted records a successful load and its duration.
	RecordCompleted(duration time.Duration)

	// RecordFailed records a failed load.
	RecordFailed()

	// RecordCancelled records a cancelled operation.
	RecordCancelled()

	// RecordQueueDepth records the number of queued operations.
	RecordQueueDepth(depth int)
}
