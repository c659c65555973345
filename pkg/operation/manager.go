package operation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/cache"
	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/loader"
)

const (
	// DefaultWorkers is the worker pool size.
	DefaultWorkers = 4

	// DefaultQueueSize bounds pending operations.
	DefaultQueueSize = 64

	// DefaultProgressInterval rate-limits progress callbacks.
	DefaultProgressInterval = 100 * time.Millisecond
)

// Config holds manager tuning knobs.
type Config struct {
	// Workers is the number of concurrent load workers
	// (DefaultWorkers when 0).
	Workers int

	// QueueSize is the maximum number of pending operations
	// (DefaultQueueSize when 0).
	QueueSize int

	// Deadline bounds each load; 0 means no deadline. Exceeding it
	// surfaces as a timeout through OnError.
	Deadline time.Duration

	// ProgressInterval rate-limits progress callbacks
	// (DefaultProgressInterval when 0).
	ProgressInterval time.Duration

	// ChunkSize is passed through to loaders (loader default when 0).
	ChunkSize int

	// Metrics receives instrumentation events; nil disables.
	Metrics Metrics
}

// Manager executes document loads on a fixed worker pool.
//
// At most one in-flight load exists per source identity; duplicate
// submissions coalesce. Completed loads are stored in the cache. A
// failing or panicking loader never affects other operations.
type Manager struct {
	cache            *cache.Cache
	registry         *loader.Registry
	workers          int
	deadline         time.Duration
	progressInterval time.Duration
	chunkSize        int
	metrics          Metrics

	queue chan *Operation

	mu       sync.Mutex
	byID     map[string]*Operation
	bySource map[string]*Operation
	started  bool
	stopped  bool

	wg        sync.WaitGroup
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// New creates a manager loading through registry and storing results
// in c.
func New(c *cache.Cache, registry *loader.Registry, cfg Config) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}

	return &Manager{
		cache:            c,
		registry:         registry,
		workers:          cfg.Workers,
		deadline:         cfg.Deadline,
		progressInterval: cfg.ProgressInterval,
		chunkSize:        cfg.ChunkSize,
		metrics:          cfg.Metrics,
		queue:            make(chan *Operation, cfg.QueueSize),
		byID:             make(map[string]*Operation),
		bySource:         make(map[string]*Operation),
		stopCh:           make(chan struct{}),
		stoppedCh:        make(chan struct{}),
	}
}

// Start launches the worker pool. Safe to call once; later calls are
// no-ops.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	logger.Info("Starting operation manager", "workers", m.workers)

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}

	go func() {
		m.wg.Wait()
		close(m.stoppedCh)
	}()
}

// Stop shuts the pool down, waiting up to timeout for in-flight loads.
// Queued operations that never ran are abandoned.
func (m *Manager) Stop(timeout time.Duration) {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()

	logger.Info("Stopping operation manager", "active", m.Len())

	close(m.stopCh)

	select {
	case <-m.stoppedCh:
		logger.Info("Operation manager stopped")
	case <-time.After(timeout):
		logger.Warn("Operation manager stop timed out", "active", m.Len())
	}
}

// Submit enqueues a load for source, or attaches cb to an in-flight
// operation for the same source identity. Returns the operation id.
//
// A full queue fails the submission immediately through cb.OnError;
// nothing is silently dropped.
func (m *Manager) Submit(source string, cb Callbacks) (string, error) {
	key := document.ResolveSource(source)

	m.mu.Lock()
	if existing, ok := m.bySource[key]; ok && existing.attach(cb) {
		m.mu.Unlock()
		if m.metrics != nil {
			m.metrics.RecordCoalesced()
		}
		logger.Debug("Coalesced duplicate submission",
			logger.KeySource, key,
			logger.KeyOperationID, existing.ID())
		return existing.ID(), nil
	}

	op := newOperation(source, key, cb)
	m.byID[op.ID()] = op
	m.bySource[key] = op
	m.mu.Unlock()

	select {
	case m.queue <- op:
		if m.metrics != nil {
			m.metrics.RecordSubmitted()
			m.metrics.RecordQueueDepth(len(m.queue))
		}
		return op.ID(), nil
	default:
		m.remove(op)
		lerr := &document.LoadError{
			Code:       document.ErrTimeout,
			Severity:   document.SeverityError,
			Message:    "operation queue is full",
			Source:     source,
			Suggestion: "wait for pending loads to finish and resubmit",
		}
		for _, cbs := range op.fail() {
			if cbs.OnError != nil {
				cbs.OnError(lerr)
			}
		}
		if m.metrics != nil {
			m.metrics.RecordFailed()
		}
		logger.Warn("Operation queue full, rejecting submission",
			logger.KeySource, key)
		return "", lerr
	}
}

// Cancel requests cancellation of an operation.
//
// Pending operations are cancelled immediately; running ones observe
// the flag between chunks, finishing within at most one extra chunk.
// Cancelling a terminal operation is a no-op; an unknown id resolves to
// a not-found error rather than a fault. Idempotent.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	op, ok := m.byID[id]
	m.mu.Unlock()
	if !ok {
		return document.NewNotFoundError(id, nil)
	}

	cbs, terminal := op.requestCancel()
	if terminal {
		m.remove(op)
		m.fireCancelled(op, cbs)
	}
	return nil
}

// CancelAll cancels every non-terminal operation, returning how many
// were affected.
func (m *Manager) CancelAll() int {
	m.mu.Lock()
	ops := make([]*Operation, 0, len(m.byID))
	for _, op := range m.byID {
		ops = append(ops, op)
	}
	m.mu.Unlock()

	cancelled := 0
	for _, op := range ops {
		if op.State().Terminal() {
			continue
		}
		cbs, terminal := op.requestCancel()
		if terminal {
			m.remove(op)
			m.fireCancelled(op, cbs)
		}
		cancelled++
	}
	return cancelled
}

// IsLoading reports whether a non-terminal operation exists for source.
func (m *Manager) IsLoading(source string) bool {
	key := document.ResolveSource(source)

	m.mu.Lock()
	op, ok := m.bySource[key]
	m.mu.Unlock()

	return ok && !op.State().Terminal()
}

// ActiveOperations returns snapshots of every tracked operation.
func (m *Manager) ActiveOperations() []Snapshot {
	m.mu.Lock()
	ops := make([]*Operation, 0, len(m.byID))
	for _, op := range m.byID {
		ops = append(ops, op)
	}
	m.mu.Unlock()

	snaps := make([]Snapshot, 0, len(ops))
	for _, op := range ops {
		snaps = append(snaps, op.Snapshot())
	}
	return snaps
}

// Len returns the number of tracked operations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func (m *Manager) remove(op *Operation) {
	m.mu.Lock()
	delete(m.byID, op.ID())
	if m.bySource[op.key] == op {
		delete(m.bySource, op.key)
	}
	m.mu.Unlock()
}

func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case op := <-m.queue:
			if m.metrics != nil {
				m.metrics.RecordQueueDepth(len(m.queue))
			}
			m.process(ctx, op)
		}
	}
}

// process runs one operation to a terminal state and fires exactly one
// terminal callback set.
func (m *Manager) process(ctx context.Context, op *Operation) {
	// Terminal operations leave the active table after callbacks fire.
	defer m.remove(op)

	loadCtx := ctx
	var cancel context.CancelFunc
	if m.deadline > 0 {
		loadCtx, cancel = context.WithTimeout(ctx, m.deadline)
	} else {
		loadCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	if !op.markRunning(cancel) {
		// Cancelled while queued; callbacks already fired.
		return
	}

	start := time.Now()
	res, lerr := m.load(loadCtx, op)

	switch {
	case res == nil && lerr == nil:
		// Cooperative cancel observed mid-load.
		m.fireCancelled(op, op.finishCancelled())

	case lerr != nil:
		logger.ErrorCtx(loadCtx, "Load failed",
			logger.KeyOperationID, op.ID(),
			logger.KeySource, op.source,
			"code", lerr.Code.String(),
			"error", lerr)
		if m.metrics != nil {
			m.metrics.RecordFailed()
		}
		for _, cbs := range op.fail() {
			if cbs.OnError != nil {
				cbs.OnError(lerr)
			}
		}

	default:
		// Only a successful load writes a cache entry.
		m.cache.Put(op.source, res)
		if m.metrics != nil {
			m.metrics.RecordCompleted(time.Since(start))
		}
		logger.Debug("Load completed",
			logger.KeyOperationID, op.ID(),
			logger.KeySource, op.source,
			logger.KeyDurationMs, time.Since(start).Milliseconds())
		for _, cbs := range op.complete() {
			if cbs.OnComplete != nil {
				cbs.OnComplete(res)
			}
		}
	}
}

// load streams the document, relaying throttled progress and honoring
// cancellation between chunks. Returns (nil, nil) when cancelled.
// Loader panics are recovered here so one bad adapter never takes the
// pool down.
func (m *Manager) load(ctx context.Context, op *Operation) (res *document.Result, lerr *document.LoadError) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered loader panic",
				logger.KeySource, op.source,
				"panic", fmt.Sprintf("%v", r))
			res = nil
			lerr = document.NewCriticalError(op.source,
				fmt.Sprintf("loader panicked: %v", r), nil)
		}
	}()

	start := time.Now()

	l, err := m.registry.ForSource(op.source)
	if err != nil {
		return nil, asLoadError(op.source, err)
	}

	meta, err := l.ExtractMetadata(ctx, op.source)
	if err != nil {
		return nil, asLoadError(op.source, err)
	}

	stream, err := l.Open(ctx, op.source, m.chunkSize)
	if err != nil {
		return nil, asLoadError(op.source, err)
	}
	defer func() { _ = stream.Close() }()

	tracker := document.NewProgressTracker(meta.SizeBytes)
	var chunks [][]byte
	var lastEmit time.Time

	for {
		if op.cancelled() {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, m.terminationError(op, err)
		}

		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, m.terminationError(op, ctxErr)
			}
			return nil, asLoadError(op.source, err)
		}

		chunks = append(chunks, chunk)
		tracker.Add(len(chunk))

		if time.Since(lastEmit) >= m.progressInterval {
			lastEmit = time.Now()
			m.emitProgress(op, tracker.Snapshot())
		}
	}

	// Final report is always delivered and always 100%.
	m.emitProgress(op, tracker.Final())

	meta.Checksum = document.Checksum(chunks)
	return &document.Result{
		Content:  chunks,
		Metadata: meta,
		LoadTime: time.Since(start),
	}, nil
}

// terminationError maps a context error after cancel or deadline.
// Explicit cancels report as cancelled (nil, nil path); a deadline
// surfaces as a timeout.
func (m *Manager) terminationError(op *Operation, err error) *document.LoadError {
	if op.cancelled() || !errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return document.NewTimeoutError(op.source, err)
}

func (m *Manager) emitProgress(op *Operation, p document.Progress) {
	for _, cbs := range op.setProgress(p) {
		if cbs.OnProgress != nil {
			cbs.OnProgress(p)
		}
	}
}

func (m *Manager) fireCancelled(op *Operation, cbs []Callbacks) {
	if cbs == nil {
		return
	}
	if m.metrics != nil {
		m.metrics.RecordCancelled()
	}
	logger.Debug("Operation cancelled",
		logger.KeyOperationID, op.ID(),
		logger.KeySource, op.source)
	for _, cb := range cbs {
		if cb.OnCancelled != nil {
			cb.OnCancelled()
		}
	}
}

// asLoadError normalizes loader failures onto the error taxonomy.
func asLoadError(source string, err error) *document.LoadError {
	if lerr, ok := document.AsLoadError(err); ok {
		return lerr
	}
	return document.NewCorruptedError(source, "load failed", err)
}
