package document

import "time"

// Progress is a point-in-time snapshot of a running load, derived by
// the caller from bytes consumed (adapters never push progress
// themselves).
type Progress struct {
	CurrentChunk       int
	BytesProcessed     int64
	TotalBytes         int64 // 0 when unknown
	Percentage         float64
	Elapsed            time.Duration
	EstimatedRemaining time.Duration // 0 when unknown
}

// ProgressFunc receives progress snapshots. Implementations must be
// fast; the pipeline rate-limits invocations.
type ProgressFunc func(Progress)

// ProgressTracker accumulates byte counts for a single load and derives
// percentage and time estimates.
type ProgressTracker struct {
	start        time.Time
	totalBytes   int64
	bytes        int64
	currentChunk int
}

// NewProgressTracker starts tracking a load of totalBytes (0 when the
// total is unknown).
func NewProgressTracker(totalBytes int64) *ProgressTracker {
	return &ProgressTracker{
		start:      time.Now(),
		totalBytes: totalBytes,
	}
}

// Add records one consumed chunk of n bytes.
func (p *ProgressTracker) Add(n int) {
	p.bytes += int64(n)
	p.currentChunk++
}

// Snapshot derives the current Progress.
func (p *ProgressTracker) Snapshot() Progress {
	elapsed := time.Since(p.start)
	s := Progress{
		CurrentChunk:   p.currentChunk,
		BytesProcessed: p.bytes,
		TotalBytes:     p.totalBytes,
		Elapsed:        elapsed,
	}
	if p.totalBytes > 0 {
		s.Percentage = float64(p.bytes) / float64(p.totalBytes) * 100.0
		if p.bytes > 0 && elapsed > 0 {
			rate := float64(p.bytes) / elapsed.Seconds()
			remaining := float64(p.totalBytes-p.bytes) / rate
			s.EstimatedRemaining = time.Duration(remaining * float64(time.Second))
		}
	}
	return s
}

// Final returns the terminal 100% report every successful load ends
// with, regardless of whether the total was known up front.
func (p *ProgressTracker) Final() Progress {
	s := p.Snapshot()
	s.TotalBytes = p.bytes
	s.Percentage = 100.0
	s.EstimatedRemaining = 0
	return s
}
