package cache

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/loader"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

// countingLoader wraps a real loader, counting Open calls and
// optionally slowing them down.
type countingLoader struct {
	inner loader.Loader
	delay time.Duration
	opens atomic.Int64
}

func (c *countingLoader) SupportsFormat(source string) bool {
	return c.inner.SupportsFormat(source)
}

func (c *countingLoader) ExtractMetadata(ctx context.Context, source string) (document.Metadata, error) {
	return c.inner.ExtractMetadata(ctx, source)
}

func (c *countingLoader) Open(ctx context.Context, source string, chunkSize int) (loader.ChunkStream, error) {
	c.opens.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return c.inner.Open(ctx, source, chunkSize)
}

func syntheticResult(size int) *document.Result {
	return &document.Result{
		Content: [][]byte{bytes.Repeat([]byte{'x'}, size)},
	}
}

func TestGetHitAndMissStats(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("hello cache"))

	c := New(Config{EnableStats: true})
	l := loader.NewTextLoader()
	ctx := context.Background()

	first, err := c.Get(ctx, path, l)
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	second, err := c.Get(ctx, path, l)
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if second != first {
		t.Fatal("second Get should return the cached result")
	}

	s := c.Stats()
	if s.Misses != 1 || s.Hits != 1 || s.TotalAccesses != 2 {
		t.Fatalf("stats = %+v, want 1 miss, 1 hit, 2 accesses", s)
	}
	if s.TotalLoadedBytes != uint64(first.Size()) {
		t.Fatalf("TotalLoadedBytes = %d, want %d", s.TotalLoadedBytes, first.Size())
	}
	if s.CurrentCount != 1 || s.CurrentSizeBytes != first.Size() {
		t.Fatalf("occupancy = %d entries / %d bytes", s.CurrentCount, s.CurrentSizeBytes)
	}
	if got := s.HitRate(); got != 0.5 {
		t.Fatalf("HitRate = %f, want 0.5", got)
	}
}

func TestCountLimitEviction(t *testing.T) {
	c := New(Config{
		MaxSizeBytes: 2 * 1024 * 1024,
		MaxDocuments: 2,
		EnableStats:  true,
	})

	c.Put("a", syntheticResult(600*1024))
	c.Put("b", syntheticResult(600*1024))
	c.Put("c", syntheticResult(600*1024))

	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Fatalf("keys = %v, want [b c]", keys)
	}
	if s := c.Stats(); s.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", s.Evictions)
	}
}

func TestSizeLimitEviction(t *testing.T) {
	c := New(Config{
		MaxSizeBytes: 1024 * 1024,
		MaxDocuments: 10,
		EnableStats:  true,
	})

	c.Put("a", syntheticResult(600*1024))
	c.Put("b", syntheticResult(600*1024))

	keys := c.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Fatalf("keys = %v, want [b]", keys)
	}
	s := c.Stats()
	if s.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", s.Evictions)
	}
	if s.TotalSavedBytes != 600*1024 {
		t.Fatalf("TotalSavedBytes = %d, want %d", s.TotalSavedBytes, 600*1024)
	}
}

func TestOversizedEntryEvictedImmediately(t *testing.T) {
	c := New(Config{
		MaxSizeBytes: 1024 * 1024,
		MaxDocuments: 10,
		EnableStats:  true,
	})

	c.Put("huge", syntheticResult(2*1024*1024))

	if c.Len() != 0 {
		t.Fatalf("oversized entry should not remain, Len = %d", c.Len())
	}
	s := c.Stats()
	if s.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", s.Evictions)
	}
	if s.CurrentSizeBytes != 0 {
		t.Fatalf("CurrentSizeBytes = %d, want 0", s.CurrentSizeBytes)
	}
}

func TestLRUOrderFollowsAccess(t *testing.T) {
	c := New(Config{MaxSizeBytes: 10 * 1024, MaxDocuments: 2})

	c.Put("a", syntheticResult(10))
	c.Put("b", syntheticResult(10))

	// Touch a so b becomes least recently used. Sources do not exist
	// on disk, so bump recency through Put.
	c.Put("a", syntheticResult(10))
	c.Put("c", syntheticResult(10))

	keys := c.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "c" {
		t.Fatalf("keys = %v, want [a c]", keys)
	}
}

func TestStaleEntryReloaded(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("version one"))

	cl := &countingLoader{inner: loader.NewTextLoader()}
	c := New(Config{EnableStats: true})
	ctx := context.Background()

	if _, err := c.Get(ctx, path, cl); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Rewrite with a clearly different mtime.
	if err := os.WriteFile(path, []byte("version two"), 0o644); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	res, err := c.Get(ctx, path, cl)
	if err != nil {
		t.Fatalf("Get after modify failed: %v", err)
	}
	if res.Text() != "version two" {
		t.Fatalf("content = %q, want fresh content", res.Text())
	}
	if got := cl.opens.Load(); got != 2 {
		t.Fatalf("opens = %d, want 2 (fresh load, not in-place refresh)", got)
	}
	if s := c.Stats(); s.Misses != 2 || s.Hits != 0 {
		t.Fatalf("stats = %+v, want 2 misses", s)
	}
}

func TestDeletedSourceIsStale(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("short lived"))

	c := New(Config{})
	ctx := context.Background()

	if _, err := c.Get(ctx, path, loader.NewTextLoader()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if _, err := c.Get(ctx, path, loader.NewTextLoader()); !document.IsNotFound(err) {
		t.Fatalf("Get on deleted source should reload and fail not-found, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("stale entry should have been dropped")
	}
}

func TestConcurrentGetsCoalesce(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("loaded once"))

	cl := &countingLoader{inner: loader.NewTextLoader(), delay: 50 * time.Millisecond}
	c := New(Config{EnableStats: true})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Get(ctx, path, cl)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
	}
	if got := cl.opens.Load(); got != 1 {
		t.Fatalf("opens = %d, want exactly 1 coalesced load", got)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestFailedLoadWritesNoEntry(t *testing.T) {
	c := New(Config{EnableStats: true})

	_, err := c.Get(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), loader.NewTextLoader())
	if !document.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed load must not cache an entry")
	}
	if s := c.Stats(); s.Misses != 1 || s.CurrentSizeBytes != 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(Config{})
	c.Put("a", syntheticResult(10))

	if !c.Invalidate("a") {
		t.Fatal("Invalidate should report removal")
	}
	if c.Invalidate("a") {
		t.Fatal("second Invalidate should be a no-op")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
}

func TestInvalidatePattern(t *testing.T) {
	c := New(Config{})
	c.Put("/logs/app.log", &document.Result{
		Content:  [][]byte{[]byte("log")},
		Metadata: document.Metadata{Source: "/logs/app.log"},
	})
	c.Put("/logs/db.log", &document.Result{
		Content:  [][]byte{[]byte("log")},
		Metadata: document.Metadata{Source: "/logs/db.log"},
	})
	c.Put("/notes/todo.md", &document.Result{
		Content:  [][]byte{[]byte("note")},
		Metadata: document.Metadata{Source: "/notes/todo.md"},
	})

	n, err := c.InvalidatePattern("/logs/*.log")
	if err != nil {
		t.Fatalf("InvalidatePattern failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}

	if _, err := c.InvalidatePattern("[bad"); err == nil {
		t.Fatal("malformed pattern should error")
	}
}

func TestInvalidateStale(t *testing.T) {
	dir := t.TempDir()
	keep := writeFile(t, dir, "keep.txt", []byte("stays"))
	gone := writeFile(t, dir, "gone.txt", []byte("goes"))

	c := New(Config{})
	ctx := context.Background()
	l := loader.NewTextLoader()
	if _, err := c.Get(ctx, keep, l); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := c.Get(ctx, gone, l); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := os.Remove(gone); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if n := c.InvalidateStale(); n != 1 {
		t.Fatalf("InvalidateStale = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

func TestAccessFrequency(t *testing.T) {
	dir := t.TempDir()
	hot := writeFile(t, dir, "hot.txt", []byte("hot"))
	cold := writeFile(t, dir, "cold.txt", []byte("cold"))

	c := New(Config{})
	ctx := context.Background()
	l := loader.NewTextLoader()
	for range 3 {
		if _, err := c.Get(ctx, hot, l); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if _, err := c.Get(ctx, cold, l); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	freq := c.AccessFrequency(1)
	if len(freq) != 1 {
		t.Fatalf("len = %d, want 1", len(freq))
	}
	if freq[0].Source != document.ResolveSource(hot) || freq[0].Count != 3 {
		t.Fatalf("top entry = %+v", freq[0])
	}
}

func TestWarmCachePartialFailure(t *testing.T) {
	dir := t.TempDir()
	good1 := writeFile(t, dir, "one.txt", []byte("one"))
	good2 := writeFile(t, dir, "two.txt", []byte("two"))
	missing := filepath.Join(dir, "missing.txt")

	c := New(Config{EnableStats: true})
	results := c.WarmCache(context.Background(), []string{good1, good2, missing}, loader.NewTextLoader())

	if !results[good1] || !results[good2] {
		t.Fatalf("results = %v, want successes for existing files", results)
	}
	if results[missing] {
		t.Fatal("missing source must report failure")
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
}

func TestStatsPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("persist me"))
	statsPath := filepath.Join(dir, "stats.json")

	p := NewJSONStatsPersister(statsPath)

	c := New(Config{EnableStats: true, Persister: p})
	ctx := context.Background()
	l := loader.NewTextLoader()
	if _, err := c.Get(ctx, path, l); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := c.Get(ctx, path, l); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	restored := New(Config{EnableStats: true, Persister: p})
	s := restored.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.TotalAccesses != 2 {
		t.Fatalf("restored stats = %+v", s)
	}
	if s.CurrentCount != 0 || s.CurrentSizeBytes != 0 {
		t.Fatal("occupancy must not be restored")
	}
}

func TestClearKeepsCounters(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", []byte("cleared"))

	c := New(Config{EnableStats: true})
	if _, err := c.Get(context.Background(), path, loader.NewTextLoader()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	c.Clear()

	s := c.Stats()
	if s.CurrentCount != 0 || s.CurrentSizeBytes != 0 {
		t.Fatalf("occupancy after Clear = %+v", s)
	}
	if s.Misses != 1 || s.TotalAccesses != 1 {
		t.Fatalf("cumulative counters lost on Clear: %+v", s)
	}
}
