package cache

import "time"

// Metrics receives cache observability events.
//
// A nil Metrics disables instrumentation with zero overhead; the cache
// checks for nil before every call. The Prometheus implementation lives
// in pkg/metrics/prometheus.
type Metrics interface {
	// RecordHit records a cache hit.
	RecordHit()

	// RecordMiss records a cache miss.
	RecordMiss()

	// RecordEviction records an evicted entry and its size.
	RecordEviction(bytes int64)

	// ObserveLoad records a completed document load.
	ObserveLoad(bytes int64, duration time.Duration)

	// RecordUsage records current cache occupancy.
	RecordUsage(bytes int64, count int)
}
