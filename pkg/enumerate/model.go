package enumerate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Kikk79/docstore/internal/logger"
)

const (
	// DefaultBatchSize is the number of entries statted per batch.
	DefaultBatchSize = 50

	// DefaultCacheSize bounds resident metadata entries.
	DefaultCacheSize = 500

	// DefaultFetchDistance is how many entries beyond each viewport
	// edge are prefetched.
	DefaultFetchDistance = 5

	// DefaultPrefetchWorkers bounds concurrent background batch
	// fetches.
	DefaultPrefetchWorkers = 4
)

// ErrIndexOutOfRange is returned by EntryAt for indexes outside the
// collection.
var ErrIndexOutOfRange = errors.New("entry index out of range")

// Comparator orders entry names within a window.
type Comparator func(a, b string) bool

// defaultComparator sorts names case-insensitively.
func defaultComparator(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}

// SnapshotStore persists entry metadata across runs so a reopened
// collection serves entries instantly while prefetch revalidates them.
// The store's lifetime is owned by the caller, not the Model.
type SnapshotStore interface {
	// Load returns previously saved entries for parent;
	// fs.ErrNotExist when none were saved.
	Load(parent string) ([]Entry, error)

	// Save upserts entries for parent.
	Save(parent string, entries []Entry) error

	Close() error
}

// Config holds model tuning knobs. Zero values select the defaults.
type Config struct {
	BatchSize       int
	CacheSize       int
	FetchDistance   int
	PrefetchWorkers int

	// Snapshot, when set, pre-populates metadata for known parents.
	Snapshot SnapshotStore
}

// Stats describes the metadata cache and batch coverage.
type Stats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Size          int     `json:"size"`
	HitRate       float64 `json:"hit_rate"`
	LoadedBatches int     `json:"loaded_batches"`
	TotalBatches  int     `json:"total_batches"`
}

// window is the per-parent enumeration state: the ordered name list
// plus which aligned batches have been statted.
type window struct {
	names         []string
	loadedBatches map[int]struct{}
	inflight      map[int]chan struct{}
}

// Model serves per-entry metadata for large collections without
// statting them up front.
//
// Resident metadata never exceeds the configured cache size regardless
// of collection size. All methods are safe for concurrent use;
// SetViewportRange never blocks the caller.
type Model struct {
	provider      Provider
	batchSize     int
	fetchDistance int
	snapshot      SnapshotStore
	sem           chan struct{}

	mu         sync.Mutex
	windows    map[string]*window
	meta       *metaCache
	comparator Comparator
}

// New creates a model enumerating through provider.
func New(provider Provider, cfg Config) *Model {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.FetchDistance <= 0 {
		cfg.FetchDistance = DefaultFetchDistance
	}
	if cfg.PrefetchWorkers <= 0 {
		cfg.PrefetchWorkers = DefaultPrefetchWorkers
	}

	return &Model{
		provider:      provider,
		batchSize:     cfg.BatchSize,
		fetchDistance: cfg.FetchDistance,
		snapshot:      cfg.Snapshot,
		sem:           make(chan struct{}, cfg.PrefetchWorkers),
		windows:       make(map[string]*window),
		meta:          newMetaCache(cfg.CacheSize),
		comparator:    defaultComparator,
	}
}

// TotalCount returns the number of entries under parent. Cheap: only
// the name list is materialized, no per-entry metadata.
func (m *Model) TotalCount(ctx context.Context, parent string) (int, error) {
	w, err := m.windowFor(ctx, parent)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return len(w.names), nil
}

// EntryAt returns the entry at index within parent's ordered names. On
// a metadata cache miss the whole aligned batch containing index is
// statted and cached.
func (m *Model) EntryAt(ctx context.Context, parent string, index int) (Entry, error) {
	w, err := m.windowFor(ctx, parent)
	if err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	if index < 0 || index >= len(w.names) {
		n := len(w.names)
		m.mu.Unlock()
		return Entry{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, n)
	}
	name := w.names[index]
	path := filepath.Join(parent, name)

	if e, ok := m.meta.get(path); ok {
		m.mu.Unlock()
		return e, nil
	}
	m.mu.Unlock()

	if err := m.fetchBatch(ctx, parent, index/m.batchSize); err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	e, ok := m.meta.peek(path)
	m.mu.Unlock()
	if ok {
		return e, nil
	}

	// Evicted between fill and lookup, or the entry vanished while its
	// batch was statted; fall back to a direct stat.
	e, err = m.provider.Stat(ctx, parent, name)
	if err != nil {
		return Entry{}, err
	}
	m.mu.Lock()
	m.meta.put(path, e)
	m.mu.Unlock()
	return e, nil
}

// SetViewportRange reports the visible index range [first, last] for
// parent. Batches covering the range plus the fetch distance beyond
// each edge are fetched in the background, deduplicated against
// cached and in-flight batches. Never blocks.
func (m *Model) SetViewportRange(parent string, first, last int) {
	go func() {
		ctx := context.Background()
		w, err := m.windowFor(ctx, parent)
		if err != nil {
			logger.Debug("Viewport prefetch skipped",
				"parent", parent, "error", err)
			return
		}

		m.mu.Lock()
		total := len(w.names)
		m.mu.Unlock()
		if total == 0 {
			return
		}

		startBatch := (first - m.fetchDistance) / m.batchSize
		if startBatch < 0 {
			startBatch = 0
		}
		endBatch := (last + m.fetchDistance) / m.batchSize

		for b := startBatch; b <= endBatch; b++ {
			if b*m.batchSize >= total {
				break
			}

			m.mu.Lock()
			_, loaded := w.loadedBatches[b]
			_, busy := w.inflight[b]
			m.mu.Unlock()
			if loaded || busy {
				continue
			}

			m.sem <- struct{}{}
			go func(batch int) {
				defer func() { <-m.sem }()
				if err := m.fetchBatch(ctx, parent, batch); err != nil {
					logger.Debug("Batch prefetch failed",
						"parent", parent, "batch", batch, "error", err)
				}
			}(b)
		}
	}()
}

// SetComparator replaces the name ordering. Every window is
// invalidated so the next access re-lists and re-fetches under the new
// order; cached metadata survives, keyed by path.
func (m *Model) SetComparator(cmp Comparator) {
	if cmp == nil {
		cmp = defaultComparator
	}

	m.mu.Lock()
	m.comparator = cmp
	m.windows = make(map[string]*window)
	m.mu.Unlock()
}

// Invalidate drops the window for parent so the next access re-lists
// it. Cached metadata is kept.
func (m *Model) Invalidate(parent string) {
	m.mu.Lock()
	delete(m.windows, parent)
	m.mu.Unlock()
}

// CacheStats returns metadata cache counters and batch coverage across
// all windows.
func (m *Model) CacheStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Stats{
		Hits:   m.meta.hits,
		Misses: m.meta.misses,
		Size:   m.meta.len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	for _, w := range m.windows {
		s.LoadedBatches += len(w.loadedBatches)
		s.TotalBatches += (len(w.names) + m.batchSize - 1) / m.batchSize
	}
	return s
}

// windowFor returns parent's window, listing and ordering names on
// first access. Snapshot metadata, when available, pre-populates the
// cache; prefetch revalidates it in the background.
func (m *Model) windowFor(ctx context.Context, parent string) (*window, error) {
	m.mu.Lock()
	if w, ok := m.windows[parent]; ok {
		m.mu.Unlock()
		return w, nil
	}
	cmp := m.comparator
	m.mu.Unlock()

	names, err := m.provider.List(ctx, parent)
	if err != nil {
		return nil, err
	}
	sortNames(names, cmp)

	var snap []Entry
	if m.snapshot != nil {
		snap, err = m.snapshot.Load(parent)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("Failed to load entry snapshot",
				"parent", parent, "error", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.windows[parent]; ok {
		return w, nil
	}

	w := &window{
		names:         names,
		loadedBatches: make(map[int]struct{}),
		inflight:      make(map[int]chan struct{}),
	}
	m.windows[parent] = w

	for _, e := range snap {
		m.meta.put(e.Path, e)
	}
	return w, nil
}

// fetchBatch stats every not-yet-cached entry of one aligned batch.
// Concurrent fetches of the same batch are deduplicated: followers wait
// for the leader instead of statting again.
func (m *Model) fetchBatch(ctx context.Context, parent string, batch int) error {
	m.mu.Lock()
	w, ok := m.windows[parent]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	if _, loaded := w.loadedBatches[batch]; loaded {
		m.mu.Unlock()
		return nil
	}
	if ch, busy := w.inflight[batch]; busy {
		m.mu.Unlock()
		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	ch := make(chan struct{})
	w.inflight[batch] = ch

	start := batch * m.batchSize
	end := start + m.batchSize
	if end > len(w.names) {
		end = len(w.names)
	}
	names := make([]string, end-start)
	copy(names, w.names[start:end])
	m.mu.Unlock()

	var fetched []Entry
	var firstErr error
	for _, name := range names {
		path := filepath.Join(parent, name)

		m.mu.Lock()
		have := m.meta.contains(path)
		m.mu.Unlock()
		if have {
			continue
		}

		e, err := m.provider.Stat(ctx, parent, name)
		if err != nil {
			// Entries may vanish between List and Stat.
			if firstErr == nil && !errors.Is(err, fs.ErrNotExist) {
				firstErr = err
			}
			continue
		}

		m.mu.Lock()
		m.meta.put(path, e)
		m.mu.Unlock()
		fetched = append(fetched, e)
	}

	m.mu.Lock()
	delete(w.inflight, batch)
	if firstErr == nil {
		w.loadedBatches[batch] = struct{}{}
	}
	m.mu.Unlock()
	close(ch)

	if m.snapshot != nil && len(fetched) > 0 {
		if err := m.snapshot.Save(parent, fetched); err != nil {
			logger.Warn("Failed to save entry snapshot",
				"parent", parent, "error", err)
		}
	}
	return firstErr
}

// sortNames orders names in place, stable so equal keys keep listing
// order.
func sortNames(names []string, cmp Comparator) {
	if cmp == nil {
		cmp = defaultComparator
	}
	sort.SliceStable(names, func(i, j int) bool {
		return cmp(names[i], names[j])
	})
}
