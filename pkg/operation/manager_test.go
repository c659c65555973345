package operation

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Kikk79/docstore/pkg/cache"
	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/loader"
)

// slowLoader serves in-memory chunks with a per-chunk delay. panicAt,
// when non-negative, makes Next panic at that chunk index.
type slowLoader struct {
	ext     string
	chunks  [][]byte
	delay   time.Duration
	panicAt int
	opens   atomic.Int64
}

func newSlowLoader(ext string, chunks [][]byte, delay time.Duration) *slowLoader {
	return &slowLoader{ext: ext, chunks: chunks, delay: delay, panicAt: -1}
}

func (s *slowLoader) SupportsFormat(source string) bool {
	return filepath.Ext(source) == s.ext
}

func (s *slowLoader) ExtractMetadata(_ context.Context, source string) (document.Metadata, error) {
	var total int64
	for _, c := range s.chunks {
		total += int64(len(c))
	}
	return document.Metadata{Source: source, SizeBytes: total}, nil
}

func (s *slowLoader) Open(_ context.Context, source string, _ int) (loader.ChunkStream, error) {
	s.opens.Add(1)
	return &slowStream{l: s}, nil
}

type slowStream struct {
	l   *slowLoader
	pos int
}

func (s *slowStream) Next(ctx context.Context) ([]byte, error) {
	if s.l.panicAt >= 0 && s.pos == s.l.panicAt {
		panic("loader exploded")
	}
	if s.pos >= len(s.l.chunks) {
		return nil, io.EOF
	}
	if s.l.delay > 0 {
		select {
		case <-time.After(s.l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	chunk := s.l.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *slowStream) Close() error { return nil }

func newManager(t *testing.T, cfg Config, loaders ...loader.Loader) (*Manager, *cache.Cache) {
	t.Helper()
	c := cache.New(cache.Config{EnableStats: true})
	reg := loader.NewDefaultRegistry()
	for _, l := range loaders {
		reg.Register(l)
	}
	m := New(c, reg, cfg)
	return m, c
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestSubmitCompletes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("async content"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	m, c := newManager(t, Config{})
	m.Start(context.Background())
	defer m.Stop(time.Second)

	done := make(chan struct{})
	var got *document.Result
	id, err := m.Submit(path, Callbacks{
		OnComplete: func(res *document.Result) {
			got = res
			close(done)
		},
		OnError: func(lerr *document.LoadError) {
			t.Errorf("unexpected error: %v", lerr)
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if id == "" {
		t.Fatal("Submit returned empty id")
	}

	waitFor(t, done, "completion")
	if got == nil || got.Text() != "async content" {
		t.Fatalf("result = %v", got)
	}

	// Result must have landed in the cache: the next Get is a hit.
	if _, err := c.Get(context.Background(), path, loader.NewTextLoader()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if s := c.Stats(); s.Hits != 1 {
		t.Fatalf("completed load not cached, stats = %+v", s)
	}
}

func TestProgressEndsAtFull(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{
		bytes.Repeat([]byte{'a'}, 100),
		bytes.Repeat([]byte{'b'}, 100),
		bytes.Repeat([]byte{'c'}, 100),
	}, 2*time.Millisecond)

	m, _ := newManager(t, Config{ProgressInterval: time.Millisecond}, sl)
	m.Start(context.Background())
	defer m.Stop(time.Second)

	done := make(chan struct{})
	var reports []document.Progress
	_, err := m.Submit("stream.slow", Callbacks{
		OnProgress: func(p document.Progress) { reports = append(reports, p) },
		OnComplete: func(*document.Result) { close(done) },
		OnError: func(lerr *document.LoadError) {
			t.Errorf("unexpected error: %v", lerr)
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitFor(t, done, "completion")
	if len(reports) == 0 {
		t.Fatal("no progress reports")
	}
	final := reports[len(reports)-1]
	if final.Percentage != 100.0 {
		t.Fatalf("final progress = %f%%, want 100%%", final.Percentage)
	}
	if final.BytesProcessed != 300 {
		t.Fatalf("BytesProcessed = %d, want 300", final.BytesProcessed)
	}
}

func TestDuplicateSubmissionsCoalesce(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{[]byte("shared")}, 100*time.Millisecond)

	m, _ := newManager(t, Config{Workers: 2}, sl)
	m.Start(context.Background())
	defer m.Stop(time.Second)

	first := make(chan struct{})
	second := make(chan struct{})

	id1, err := m.Submit("doc.slow", Callbacks{
		OnComplete: func(*document.Result) { close(first) },
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	id2, err := m.Submit("doc.slow", Callbacks{
		OnComplete: func(*document.Result) { close(second) },
	})
	if err != nil {
		t.Fatalf("coalesced Submit failed: %v", err)
	}

	if id1 != id2 {
		t.Fatalf("ids differ: %s vs %s", id1, id2)
	}

	waitFor(t, first, "first callback set")
	waitFor(t, second, "second callback set")

	if got := sl.opens.Load(); got != 1 {
		t.Fatalf("opens = %d, want one shared load", got)
	}
}

func TestQueueFullFailsFast(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{[]byte("x")}, 0)

	// Never started: submissions stay queued.
	m, _ := newManager(t, Config{QueueSize: 1}, sl)

	if _, err := m.Submit("a.slow", Callbacks{}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}

	var rejected *document.LoadError
	_, err := m.Submit("b.slow", Callbacks{
		OnError: func(lerr *document.LoadError) { rejected = lerr },
	})
	if err == nil {
		t.Fatal("second Submit should fail with a full queue")
	}
	if rejected == nil {
		t.Fatal("OnError must fire on rejection")
	}
	if rejected.Code != document.ErrTimeout {
		t.Fatalf("code = %v", rejected.Code)
	}
}

func TestCancelPending(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{[]byte("x")}, 0)
	m, _ := newManager(t, Config{}, sl) // not started

	cancelled := false
	id, err := m.Submit("doc.slow", Callbacks{
		OnCancelled: func() { cancelled = true },
		OnComplete:  func(*document.Result) { t.Error("must not complete") },
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !cancelled {
		t.Fatal("OnCancelled not fired")
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestCancelRunning(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{
		[]byte("one"), []byte("two"), []byte("three"),
	}, 80*time.Millisecond)

	m, c := newManager(t, Config{ProgressInterval: time.Millisecond}, sl)
	m.Start(context.Background())
	defer m.Stop(time.Second)

	started := make(chan struct{})
	done := make(chan struct{})
	var startedOnce atomic.Bool

	id, err := m.Submit("doc.slow", Callbacks{
		OnProgress: func(document.Progress) {
			if startedOnce.CompareAndSwap(false, true) {
				close(started)
			}
		},
		OnCancelled: func() { close(done) },
		OnComplete:  func(*document.Result) { t.Error("must not complete") },
		OnError:     func(lerr *document.LoadError) { t.Errorf("unexpected error: %v", lerr) },
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitFor(t, started, "first progress")
	if err := m.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	// Second cancel must be a harmless no-op.
	if err := m.Cancel(id); err != nil && !document.IsNotFound(err) {
		t.Fatalf("repeated Cancel failed: %v", err)
	}

	waitFor(t, done, "cancellation")
	if c.Len() != 0 {
		t.Fatal("cancelled operation must not write a cache entry")
	}
}

func TestCancelUnknownID(t *testing.T) {
	m, _ := newManager(t, Config{})
	if err := m.Cancel("no-such-operation"); !document.IsNotFound(err) {
		t.Fatalf("want not-found, got %v", err)
	}
}

func TestCancelAll(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{[]byte("x")}, 0)
	m, _ := newManager(t, Config{}, sl) // not started: all stay pending

	for _, src := range []string{"a.slow", "b.slow", "c.slow"} {
		if _, err := m.Submit(src, Callbacks{}); err != nil {
			t.Fatalf("Submit %s failed: %v", src, err)
		}
	}

	if n := m.CancelAll(); n != 3 {
		t.Fatalf("CancelAll = %d, want 3", n)
	}
	if m.Len() != 0 {
		t.Fatalf("Len = %d, want 0", m.Len())
	}
}

func TestDeadlineSurfacesAsTimeout(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{
		[]byte("a"), []byte("b"), []byte("c"), []byte("d"),
	}, 100*time.Millisecond)

	m, c := newManager(t, Config{Deadline: 50 * time.Millisecond}, sl)
	m.Start(context.Background())
	defer m.Stop(time.Second)

	done := make(chan struct{})
	var got *document.LoadError
	_, err := m.Submit("doc.slow", Callbacks{
		OnError: func(lerr *document.LoadError) {
			got = lerr
			close(done)
		},
		OnComplete: func(*document.Result) {
			t.Error("must not complete")
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitFor(t, done, "timeout")
	if got.Code != document.ErrTimeout {
		t.Fatalf("code = %v, want timeout", got.Code)
	}
	if c.Len() != 0 {
		t.Fatal("timed out operation must not write a cache entry")
	}
}

func TestLoaderPanicIsContained(t *testing.T) {
	bad := newSlowLoader(".bad", [][]byte{[]byte("x")}, 0)
	bad.panicAt = 0

	m, _ := newManager(t, Config{Workers: 1}, bad)
	m.Start(context.Background())
	defer m.Stop(time.Second)

	done := make(chan struct{})
	var got *document.LoadError
	_, err := m.Submit("doc.bad", Callbacks{
		OnError: func(lerr *document.LoadError) {
			got = lerr
			close(done)
		},
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	waitFor(t, done, "panic recovery")
	if got.Severity != document.SeverityCritical {
		t.Fatalf("severity = %v, want critical", got.Severity)
	}

	// The single worker must have survived the panic.
	dir := t.TempDir()
	path := filepath.Join(dir, "ok.txt")
	if err := os.WriteFile(path, []byte("still alive"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	ok := make(chan struct{})
	if _, err := m.Submit(path, Callbacks{
		OnComplete: func(*document.Result) { close(ok) },
		OnError: func(lerr *document.LoadError) {
			t.Errorf("unexpected error: %v", lerr)
			close(ok)
		},
	}); err != nil {
		t.Fatalf("Submit after panic failed: %v", err)
	}
	waitFor(t, ok, "post-panic load")
}

func TestIsLoadingAndActiveOperations(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{[]byte("x")}, 0)
	m, _ := newManager(t, Config{}, sl) // not started

	id, err := m.Submit("doc.slow", Callbacks{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if !m.IsLoading("doc.slow") {
		t.Fatal("IsLoading should report the pending operation")
	}
	if m.IsLoading("other.slow") {
		t.Fatal("IsLoading should not report unknown sources")
	}

	snaps := m.ActiveOperations()
	if len(snaps) != 1 || snaps[0].ID != id || snaps[0].State != StatePending {
		t.Fatalf("snapshots = %+v", snaps)
	}
}

func TestStopIsGraceful(t *testing.T) {
	sl := newSlowLoader(".slow", [][]byte{[]byte("x")}, 10*time.Millisecond)
	m, _ := newManager(t, Config{}, sl)
	m.Start(context.Background())

	done := make(chan struct{})
	if _, err := m.Submit("doc.slow", Callbacks{
		OnComplete: func(*document.Result) { close(done) },
	}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitFor(t, done, "completion")

	m.Stop(time.Second)
	m.Stop(time.Second) // second Stop must not panic
}
