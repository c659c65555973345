package loader

import (
	"sync"

	"github.com/Kikk79/docstore/pkg/document"
)

// Registry maps sources to loaders through explicit registration. The
// variant set is closed: dispatch asks each registered loader
// SupportsFormat in registration order, never probing beyond the
// interface.
//
// Registries are explicitly constructed; there is no package-level
// default instance.
type Registry struct {
	mu      sync.RWMutex
	loaders []Loader
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// NewDefaultRegistry creates a registry with the built-in loaders
// registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTextLoader())
	return r
}

// Register adds a loader. Later registrations are consulted after
// earlier ones.
func (r *Registry) Register(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders = append(r.loaders, l)
}

// ForSource returns the first registered loader supporting the source,
// or an UnsupportedFormatError.
func (r *Registry) ForSource(source string) (Loader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.loaders {
		if l.SupportsFormat(source) {
			return l, nil
		}
	}
	return nil, document.NewUnsupportedFormatError(source)
}

// Len returns the number of registered loaders.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loaders)
}
