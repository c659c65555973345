package logger

import "log/slog"

// Standard field keys for structured logging. Use these consistently
// across packages so logs aggregate and query cleanly.
const (
	// Operations
	KeyOperationID = "operation_id" // Async operation identifier
	KeyState       = "state"        // Operation state: pending, running, ...
	KeyWorker      = "worker"       // Worker index in the pool

	// Documents
	KeySource   = "source"   // Document source path or identifier
	KeyFormat   = "format"   // Document format: text, markdown, ...
	KeySize     = "size"     // Size in bytes
	KeyChecksum = "checksum" // Content checksum

	// Cache
	KeyCacheHit  = "cache_hit" // Cache hit indicator
	KeyCacheSize = "cache_size"
	KeyEvicted   = "evicted" // Entries evicted
	KeyStale     = "stale"   // Staleness indicator

	// Enumeration
	KeyParent  = "parent" // Enumerated directory
	KeyBatch   = "batch"  // Batch index
	KeyEntries = "entries"

	// Generic
	KeyError      = "error"
	KeyDurationMs = "duration_ms"
	KeyPath       = "path"
	KeyPattern    = "pattern"
)

// Err returns a slog.Attr for an error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// OperationID returns a slog.Attr for an async operation id.
func OperationID(id string) slog.Attr {
	return slog.String(KeyOperationID, id)
}

// Source returns a slog.Attr for a document source.
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// CacheHit returns a slog.Attr for a cache hit indicator.
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// DurationMs returns a slog.Attr for a duration in milliseconds.
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
