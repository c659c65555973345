package service

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/Kikk79/docstore/internal/logger"
	"github.com/Kikk79/docstore/pkg/cache"
	"github.com/Kikk79/docstore/pkg/enumerate"
)

// watcher invalidates cached documents when their files change on
// disk. It watches the parent directories of tracked sources; a write,
// rename, or removal under a watched directory drops the matching
// cache entry and the directory's enumeration window.
type watcher struct {
	fs    *fsnotify.Watcher
	cache *cache.Cache
	enum  *enumerate.Model

	mu      sync.Mutex
	dirs    map[string]struct{}
	started bool

	doneCh chan struct{}
}

func newWatcher(c *cache.Cache, enum *enumerate.Model) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{
		fs:     fs,
		cache:  c,
		enum:   enum,
		dirs:   make(map[string]struct{}),
		doneCh: make(chan struct{}),
	}, nil
}

func (w *watcher) start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.run()
}

// track watches the directory containing source. Duplicate tracks are
// cheap no-ops.
func (w *watcher) track(source string) {
	dir := filepath.Dir(filepath.Clean(source))

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.dirs[dir]; ok {
		return
	}
	if err := w.fs.Add(dir); err != nil {
		logger.Debug("watch registration failed", logger.KeyPath, dir, logger.KeyError, err)
		return
	}
	w.dirs[dir] = struct{}{}
	logger.Debug("watching directory", logger.KeyPath, dir)
}

func (w *watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Warn("filesystem watcher error", logger.KeyError, err)
		}
	}
}

func (w *watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
		return
	}

	if w.cache.Invalidate(event.Name) {
		logger.Info("cached document invalidated by filesystem change",
			logger.KeySource, event.Name,
			"op", event.Op.String())
	}

	// Creations and removals change the directory listing as well.
	if event.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.enum.Invalidate(filepath.Dir(filepath.Clean(event.Name)))
	}
}

func (w *watcher) close() error {
	err := w.fs.Close()

	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.doneCh
	}
	return err
}
