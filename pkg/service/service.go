// Package service wires the document core together: loader registry,
// cache, operation manager, enumeration model, and the filesystem
// watcher that invalidates cached documents when their files change.
//
// The service owns the lifecycle of every component it creates.
// Callers construct it from a config.Config, Start it, and Close it
// on shutdown.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/cache"
	"github.com/Kikk79/docstore/pkg/config"
	"github.com/Kikk79/docstore/pkg/document"
	"github.com/Kikk79/docstore/pkg/enumerate"
	enumbadger "github.com/Kikk79/docstore/pkg/enumerate/badger"
	"github.com/Kikk79/docstore/pkg/loader"
	"github.com/Kikk79/docstore/pkg/metrics"
	"github.com/Kikk79/docstore/pkg/operation"
)

// Service is the assembled document core.
type Service struct {
	cfg      *config.Config
	registry *loader.Registry
	cache    *cache.Cache
	manager  *operation.Manager
	enum     *enumerate.Model
	snapshot *enumbadger.Store
	watcher  *watcher
}

// New assembles a service from configuration. Nothing runs until
// Start is called.
func New(cfg *config.Config) (*Service, error) {
	if cfg == nil {
		cfg = config.GetDefaultConfig()
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	registry := loader.NewDefaultRegistry()

	var persister cache.StatsPersister
	if cfg.Cache.PersistStats {
		persister = cache.NewJSONStatsPersister(cfg.Cache.StatsPath)
	}

	c := cache.New(cache.Config{
		MaxSizeBytes: cfg.Cache.MaxSize.Int64(),
		MaxDocuments: cfg.Cache.MaxDocuments,
		ChunkSize:    cfg.Loader.ChunkSize.Int(),
		EnableStats:  true,
		Persister:    persister,
		Metrics:      metrics.NewCacheMetrics(),
	})

	manager := operation.New(c, registry, operation.Config{
		Workers:          cfg.Operations.Workers,
		QueueSize:        cfg.Operations.QueueSize,
		Deadline:         cfg.Operations.Deadline,
		ProgressInterval: cfg.Operations.ProgressInterval,
		ChunkSize:        cfg.Loader.ChunkSize.Int(),
		Metrics:          metrics.NewOperationMetrics(),
	})

	var snapshot *enumbadger.Store
	if cfg.Enumerate.Snapshot.Enabled {
		store, err := enumbadger.Open(cfg.Enumerate.Snapshot.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open enumeration snapshot store: %w", err)
		}
		snapshot = store
	}

	enumCfg := enumerate.Config{
		BatchSize:     cfg.Enumerate.BatchSize,
		CacheSize:     cfg.Enumerate.CacheSize,
		FetchDistance: cfg.Enumerate.FetchDistance,
	}
	if snapshot != nil {
		enumCfg.Snapshot = snapshot
	}
	enum := enumerate.New(enumerate.NewDirProvider(), enumCfg)

	svc := &Service{
		cfg:      cfg,
		registry: registry,
		cache:    c,
		manager:  manager,
		enum:     enum,
		snapshot: snapshot,
	}

	if cfg.Watcher.Enabled {
		w, err := newWatcher(c, enum)
		if err != nil {
			_ = svc.closeStores()
			return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
		}
		svc.watcher = w
	}

	return svc, nil
}

// Start launches the operation workers and the filesystem watcher.
// The context bounds the lifetime of all background work.
func (s *Service) Start(ctx context.Context) {
	s.manager.Start(ctx)
	if s.watcher != nil {
		s.watcher.start()
	}
	logger.Info("document service started",
		"workers", s.cfg.Operations.Workers,
		"cache_max_documents", s.cfg.Cache.MaxDocuments)
}

// Close stops background work and releases resources. Safe to call
// once after Start, or directly after New.
func (s *Service) Close() error {
	s.manager.Stop(s.cfg.ShutdownTimeout)
	if s.watcher != nil {
		if err := s.watcher.close(); err != nil {
			logger.Warn("filesystem watcher close failed", logger.KeyError, err)
		}
	}
	return s.closeStores()
}

func (s *Service) closeStores() error {
	var errs []error
	if err := s.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("cache close: %w", err))
	}
	if s.snapshot != nil {
		if err := s.snapshot.Close(); err != nil {
			errs = append(errs, fmt.Errorf("snapshot store close: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Open submits an asynchronous load for source and returns the
// operation id. Progress and completion are delivered through cb.
// Duplicate submissions for the same source attach to the in-flight
// operation.
func (s *Service) Open(source string, cb operation.Callbacks) (string, error) {
	id, err := s.manager.Submit(source, cb)
	if err != nil {
		return "", err
	}
	s.track(source)
	return id, nil
}

// Get loads source synchronously through the cache.
func (s *Service) Get(ctx context.Context, source string) (*document.Result, error) {
	l, err := s.registry.ForSource(source)
	if err != nil {
		return nil, err
	}
	res, err := s.cache.Get(ctx, source, l)
	if err != nil {
		return nil, err
	}
	s.track(source)
	return res, nil
}

// Preview streams at most maxBytes of source without touching the
// cache. The returned metadata reflects the full document.
func (s *Service) Preview(ctx context.Context, source string, maxBytes int64) ([]byte, document.Metadata, error) {
	l, err := s.registry.ForSource(source)
	if err != nil {
		return nil, document.Metadata{}, err
	}

	meta, err := l.ExtractMetadata(ctx, source)
	if err != nil {
		return nil, document.Metadata{}, err
	}

	stream, err := l.Open(ctx, source, s.cfg.Loader.ChunkSize.Int())
	if err != nil {
		return nil, document.Metadata{}, err
	}
	defer func() { _ = stream.Close() }()

	var buf []byte
	for int64(len(buf)) < maxBytes {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, document.Metadata{}, err
		}
		buf = append(buf, chunk...)
	}
	if int64(len(buf)) > maxBytes {
		buf = buf[:maxBytes]
	}

	return buf, meta, nil
}

// Warm loads the given sources into the cache ahead of demand and
// reports per-source success.
func (s *Service) Warm(ctx context.Context, sources []string) map[string]bool {
	results := make(map[string]bool, len(sources))

	// Sources are warmed per loader so mixed-format batches dispatch
	// correctly.
	groups := make(map[loader.Loader][]string)
	for _, src := range sources {
		l, err := s.registry.ForSource(src)
		if err != nil {
			results[src] = false
			continue
		}
		groups[l] = append(groups[l], src)
	}

	for l, group := range groups {
		for src, ok := range s.cache.WarmCache(ctx, group, l) {
			results[src] = ok
			if ok {
				s.track(src)
			}
		}
	}
	return results
}

// Cancel requests cancellation of an operation by id.
func (s *Service) Cancel(id string) error {
	return s.manager.Cancel(id)
}

// CancelAll cancels every known operation and returns how many were
// affected.
func (s *Service) CancelAll() int {
	return s.manager.CancelAll()
}

// IsLoading reports whether a load for source is in flight.
func (s *Service) IsLoading(source string) bool {
	return s.manager.IsLoading(source)
}

// ActiveOperations returns snapshots of all known operations.
func (s *Service) ActiveOperations() []operation.Snapshot {
	return s.manager.ActiveOperations()
}

// Enumeration returns the directory enumeration model.
func (s *Service) Enumeration() *enumerate.Model {
	return s.enum
}

// CacheStats returns a snapshot of the document cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// CacheKeys returns cached sources ordered least to most recently
// used.
func (s *Service) CacheKeys() []string {
	return s.cache.Keys()
}

// AccessFrequency returns the most frequently accessed cached
// documents, up to limit.
func (s *Service) AccessFrequency(limit int) []cache.Access {
	return s.cache.AccessFrequency(limit)
}

// Invalidate drops a document from the cache.
func (s *Service) Invalidate(source string) bool {
	return s.cache.Invalidate(source)
}

// InvalidateStale drops every cached document whose file changed on
// disk and returns how many were removed.
func (s *Service) InvalidateStale() int {
	return s.cache.InvalidateStale()
}

// track registers source's directory with the filesystem watcher.
func (s *Service) track(source string) {
	if s.watcher == nil {
		return
	}
	s.watcher.track(source)
}

// WaitIdle blocks until no operations remain or the timeout elapses.
// Intended for CLI commands that submit work and exit.
func (s *Service) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for s.manager.Len() > 0 {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(10 * time.Millisecond)
	}
	return true
}
