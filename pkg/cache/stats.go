package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Stats holds cumulative cache counters. Counters survive restarts when
// a StatsPersister is configured; CurrentSizeBytes and CurrentCount
// always reflect the live cache.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`

	// TotalAccesses counts every Get, hit or miss.
	TotalAccesses uint64 `json:"total_accesses"`

	// TotalLoadedBytes counts bytes served from cache on hits.
	TotalLoadedBytes uint64 `json:"total_loaded_bytes"`

	// TotalSavedBytes counts bytes reclaimed by eviction.
	TotalSavedBytes uint64 `json:"total_saved_bytes"`

	CurrentSizeBytes int64 `json:"current_size_bytes"`
	CurrentCount     int   `json:"current_count"`
}

// HitRate returns hits over total accesses, 0 when the cache has never
// been read.
func (s Stats) HitRate() float64 {
	if s.TotalAccesses == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalAccesses)
}

// StatsPersister saves and restores cumulative counters across runs.
// Load returning fs.ErrNotExist is treated as a fresh start.
type StatsPersister interface {
	Load() (Stats, error)
	Save(Stats) error
}

// JSONStatsPersister stores stats as a JSON document on disk. Writes go
// through a temp file and rename so a crash never leaves a truncated
// document behind.
type JSONStatsPersister struct {
	path string
}

// NewJSONStatsPersister creates a persister writing to path.
func NewJSONStatsPersister(path string) *JSONStatsPersister {
	return &JSONStatsPersister{path: path}
}

// Load reads stats from disk.
func (p *JSONStatsPersister) Load() (Stats, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read stats from %s: %w", p.path, err)
	}

	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return Stats{}, fmt.Errorf("failed to parse stats from %s: %w", p.path, err)
	}
	return s, nil
}

// Save writes stats to disk atomically.
func (p *JSONStatsPersister) Save(s Stats) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stats: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create stats directory: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write stats to %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace stats at %s: %w", p.path, err)
	}
	return nil
}

// IsNotExist reports whether a Load error means the stats document has
// never been written.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
