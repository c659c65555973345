// Package enumerate implements windowed enumeration of large
// collections.
//
// A Model serves per-entry metadata for collections too large to stat
// up front: names are listed once per window, metadata is fetched in
// aligned batches on demand and kept in a count-bounded LRU. Viewport
// updates prefetch surrounding batches asynchronously.
package enumerate

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Kikk79/docstore/pkg/document"
)

// Entry is the metadata served per collection member.
type Entry struct {
	Name       string        `json:"name"`
	Path       string        `json:"path"`
	SizeBytes  int64         `json:"size_bytes"`
	Type       document.Type `json:"type"`
	ModifiedAt time.Time     `json:"modified_at"`
	IsDir      bool          `json:"is_dir"`
}

// Provider enumerates a collection. Count and List are cheap; Stat is
// the per-entry cost the Model amortizes through batching.
type Provider interface {
	// Count returns the number of entries under parent.
	Count(ctx context.Context, parent string) (int, error)

	// List returns entry names under parent, unordered.
	List(ctx context.Context, parent string) ([]string, error)

	// Stat returns metadata for one named entry.
	Stat(ctx context.Context, parent, name string) (Entry, error)
}

// DirProvider enumerates filesystem directories.
type DirProvider struct{}

// NewDirProvider creates a directory provider.
func NewDirProvider() *DirProvider {
	return &DirProvider{}
}

// Count returns the number of directory entries.
func (p *DirProvider) Count(ctx context.Context, parent string) (int, error) {
	names, err := p.List(ctx, parent)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// List returns the names in parent without statting them.
func (p *DirProvider) List(ctx context.Context, parent string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirents, err := os.ReadDir(parent)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		names = append(names, d.Name())
	}
	return names, nil
}

// Stat returns metadata for parent/name. Symlinks are not followed.
func (p *DirProvider) Stat(ctx context.Context, parent, name string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	path := filepath.Join(parent, name)
	info, err := os.Lstat(path)
	if err != nil {
		return Entry{}, err
	}

	return entryFromInfo(path, name, info), nil
}

func entryFromInfo(path, name string, info fs.FileInfo) Entry {
	e := Entry{
		Name:       name,
		Path:       path,
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
		IsDir:      info.IsDir(),
	}
	if !e.IsDir {
		e.Type = document.DetectType(name)
	}
	return e
}
