// Package cache implements the authoritative in-memory document store.
//
// Entries are owned exclusively by the cache and ordered by access
// recency. Eviction enforces both a byte budget and a document count;
// staleness against the filesystem is checked lazily at access time.
// Concurrent loads of the same source are coalesced so each source is
// read at most once at a time.
package cache

import (
	"container/list"
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/loader"
)

const (
	// DefaultMaxSizeBytes bounds total cached content bytes.
	DefaultMaxSizeBytes = 100 * 1024 * 1024

	// DefaultMaxDocuments bounds the number of cached entries.
	DefaultMaxDocuments = 1000

	// DefaultWarmConcurrency bounds parallel loads during warming.
	DefaultWarmConcurrency = 4
)

// Config controls cache limits and collaborators.
type Config struct {
	// MaxSizeBytes is the content byte budget (DefaultMaxSizeBytes
	// when 0).
	MaxSizeBytes int64

	// MaxDocuments is the entry count budget (DefaultMaxDocuments
	// when 0).
	MaxDocuments int

	// ChunkSize is passed through to loaders (loader default when 0).
	ChunkSize int

	// WarmConcurrency bounds parallel loads in WarmCache.
	WarmConcurrency int

	// EnableStats turns on counter tracking.
	EnableStats bool

	// Persister, when set together with EnableStats, restores counters
	// on construction and writes them on Close and Clear.
	Persister StatsPersister

	// Metrics receives instrumentation events; nil disables.
	Metrics Metrics
}

// entry is a cached document plus its access bookkeeping. Owned by the
// cache; never handed out.
type entry struct {
	result       *document.Result
	sizeBytes    int64
	accessCount  uint64
	lastAccessed time.Time
	modifiedAt   time.Time
	elem         *list.Element
}

// Cache is a size and count bounded LRU document store.
//
// All methods are safe for concurrent use. Loads triggered by Get run
// outside the entry lock and are coalesced per source.
type Cache struct {
	maxSizeBytes    int64
	maxDocuments    int
	chunkSize       int
	warmConcurrency int
	enableStats     bool
	persister       StatsPersister
	metrics         Metrics

	mu      sync.Mutex
	entries map[string]*entry
	order   *list.List // front = most recently used; values are keys
	size    int64
	stats   Stats

	flight singleflight.Group
}

// New creates a cache. Persisted counters, when configured, are
// restored; a missing stats document is a fresh start.
func New(cfg Config) *Cache {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultMaxSizeBytes
	}
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = DefaultMaxDocuments
	}
	if cfg.WarmConcurrency <= 0 {
		cfg.WarmConcurrency = DefaultWarmConcurrency
	}

	c := &Cache{
		maxSizeBytes:    cfg.MaxSizeBytes,
		maxDocuments:    cfg.MaxDocuments,
		chunkSize:       cfg.ChunkSize,
		warmConcurrency: cfg.WarmConcurrency,
		enableStats:     cfg.EnableStats,
		persister:       cfg.Persister,
		metrics:         cfg.Metrics,
		entries:         make(map[string]*entry),
		order:           list.New(),
	}

	if c.persister != nil && c.enableStats {
		s, err := c.persister.Load()
		switch {
		case err == nil:
			c.stats = s
			c.stats.CurrentSizeBytes = 0
			c.stats.CurrentCount = 0
		case IsNotExist(err):
			// First run.
		default:
			logger.Warn("Failed to restore cache stats", "error", err)
		}
	}

	return c
}

// Get returns the document for source, loading it through l on a miss
// or when the cached copy is stale. Concurrent misses for the same
// source share a single load. A failed or cancelled load never writes
// an entry.
func (c *Cache) Get(ctx context.Context, source string, l loader.Loader) (*document.Result, error) {
	key := document.ResolveSource(source)

	c.mu.Lock()
	if c.enableStats {
		c.stats.TotalAccesses++
	}

	if e, ok := c.entries[key]; ok {
		if !stale(e, key) {
			e.accessCount++
			e.lastAccessed = time.Now()
			c.order.MoveToFront(e.elem)
			if c.enableStats {
				c.stats.Hits++
				c.stats.TotalLoadedBytes += uint64(e.sizeBytes)
			}
			res := e.result
			c.mu.Unlock()

			if c.metrics != nil {
				c.metrics.RecordHit()
			}
			return res, nil
		}

		// Modified or removed underneath us; drop and reload.
		c.removeLocked(key, e)
		logger.Debug("Invalidated stale cache entry", logger.KeySource, key)
	}

	if c.enableStats {
		c.stats.Misses++
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordMiss()
	}

	v, err, shared := c.flight.Do(key, func() (any, error) {
		return loader.ReadAll(ctx, l, source, c.chunkSize, nil)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*document.Result)

	if c.metrics != nil {
		c.metrics.ObserveLoad(res.Size(), res.LoadTime)
	}

	// The coalesced winner inserts; followers find the entry present
	// and leave it alone.
	if shared {
		c.putIfAbsent(key, source, res)
	} else {
		c.put(key, source, res)
	}
	return res, nil
}

// Put stores an externally loaded result, replacing any existing entry
// for the same source. Returns false for a nil result.
func (c *Cache) Put(source string, result *document.Result) bool {
	if result == nil {
		return false
	}
	c.put(document.ResolveSource(source), source, result)
	return true
}

func (c *Cache) put(key, source string, result *document.Result) {
	modifiedAt := statModTime(source)
	size := result.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.removeLocked(key, old)
	}
	c.insertLocked(key, result, size, modifiedAt)
}

func (c *Cache) putIfAbsent(key, source string, result *document.Result) {
	modifiedAt := statModTime(source)
	size := result.Size()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	c.insertLocked(key, result, size, modifiedAt)
}

// insertLocked adds a new entry, evicting LRU entries to stay within
// both budgets. An entry larger than the whole byte budget is inserted
// and immediately evicted, still counted.
func (c *Cache) insertLocked(key string, result *document.Result, size int64, modifiedAt time.Time) {
	c.evictLocked(size)

	e := &entry{
		result:       result,
		sizeBytes:    size,
		accessCount:  1,
		lastAccessed: time.Now(),
		modifiedAt:   modifiedAt,
	}
	e.elem = c.order.PushFront(key)
	c.entries[key] = e
	c.size += size

	// Oversized entry: nothing else left to evict, so it goes itself.
	for c.size > c.maxSizeBytes && c.order.Len() > 0 {
		c.evictOneLocked()
	}

	c.recordUsageLocked()
}

// evictLocked makes room for required bytes, enforcing both limits.
func (c *Cache) evictLocked(required int64) {
	for (c.size+required > c.maxSizeBytes || len(c.entries) >= c.maxDocuments) &&
		c.order.Len() > 0 {
		c.evictOneLocked()
	}
}

func (c *Cache) evictOneLocked() {
	back := c.order.Back()
	key := back.Value.(string)
	e := c.entries[key]

	c.removeLocked(key, e)
	if c.enableStats {
		c.stats.Evictions++
		c.stats.TotalSavedBytes += uint64(e.sizeBytes)
	}
	if c.metrics != nil {
		c.metrics.RecordEviction(e.sizeBytes)
	}
	logger.Debug("Evicted cache entry",
		logger.KeySource, key,
		"size_bytes", e.sizeBytes)
}

func (c *Cache) removeLocked(key string, e *entry) {
	c.order.Remove(e.elem)
	delete(c.entries, key)
	c.size -= e.sizeBytes
}

func (c *Cache) recordUsageLocked() {
	if c.metrics != nil {
		c.metrics.RecordUsage(c.size, len(c.entries))
	}
}

// Invalidate removes a single entry. Returns whether it was present.
func (c *Cache) Invalidate(source string) bool {
	key := document.ResolveSource(source)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeLocked(key, e)
	c.recordUsageLocked()
	return true
}

// InvalidateStale removes every entry whose source was modified or
// deleted since caching. Returns the number removed.
func (c *Cache) InvalidateStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if stale(e, key) {
			c.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		c.recordUsageLocked()
	}
	return removed
}

// InvalidatePattern removes entries whose source matches the glob
// pattern. Returns the number removed; a malformed pattern is an error.
func (c *Cache) InvalidatePattern(pattern string) (int, error) {
	// Validate up front so a bad glob fails loudly instead of silently
	// matching nothing.
	if _, err := filepath.Match(pattern, ""); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		ok, _ := filepath.Match(pattern, e.result.Metadata.Source)
		if ok {
			c.removeLocked(key, e)
			removed++
		}
	}
	if removed > 0 {
		c.recordUsageLocked()
	}
	return removed, nil
}

// Clear drops every entry. Cumulative counters are kept and, when
// persistence is configured, written out.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.order.Init()
	c.size = 0
	c.recordUsageLocked()
	stats := c.snapshotLocked()
	c.mu.Unlock()

	_ = c.persist(stats)
}

// Keys returns cached source identities from least to most recently
// used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(string))
	}
	return keys
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Access pairs a source identity with its access count.
type Access struct {
	Source string `json:"source"`
	Count  uint64 `json:"count"`
}

// AccessFrequency returns the most frequently accessed entries, up to
// limit, most accessed first.
func (c *Cache) AccessFrequency(limit int) []Access {
	c.mu.Lock()
	accesses := make([]Access, 0, len(c.entries))
	for key, e := range c.entries {
		accesses = append(accesses, Access{Source: key, Count: e.accessCount})
	}
	c.mu.Unlock()

	sort.Slice(accesses, func(i, j int) bool {
		if accesses[i].Count != accesses[j].Count {
			return accesses[i].Count > accesses[j].Count
		}
		return accesses[i].Source < accesses[j].Source
	})

	if limit > 0 && len(accesses) > limit {
		accesses = accesses[:limit]
	}
	return accesses
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Stats {
	s := c.stats
	s.CurrentSizeBytes = c.size
	s.CurrentCount = len(c.entries)
	return s
}

// WarmCache pre-loads sources with bounded concurrency, returning per
// source success. A failed source never aborts the rest; warm loads
// share the same per-source coalescing as Get.
func (c *Cache) WarmCache(ctx context.Context, sources []string, l loader.Loader) map[string]bool {
	results := make(map[string]bool, len(sources))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.warmConcurrency)

	for _, source := range sources {
		g.Go(func() error {
			_, err := c.Get(ctx, source, l)

			mu.Lock()
			results[source] = err == nil
			mu.Unlock()

			if err != nil {
				logger.Debug("Cache warming failed",
					logger.KeySource, source, "error", err)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// Close writes out counters when persistence is configured.
func (c *Cache) Close() error {
	c.mu.Lock()
	stats := c.snapshotLocked()
	c.mu.Unlock()

	return c.persist(stats)
}

func (c *Cache) persist(stats Stats) error {
	if c.persister == nil || !c.enableStats {
		return nil
	}
	if err := c.persister.Save(stats); err != nil {
		logger.Warn("Failed to persist cache stats", "error", err)
		return err
	}
	return nil
}

// stale reports whether the entry's backing file was modified or
// removed since caching. Sources that never resolved to a file are
// treated as removed.
func stale(e *entry, key string) bool {
	info, err := os.Stat(key)
	if err != nil {
		return true
	}
	return !info.ModTime().Equal(e.modifiedAt)
}

func statModTime(source string) time.Time {
	if info, err := os.Stat(source); err == nil {
		return info.ModTime()
	}
	return time.Time{}
}
