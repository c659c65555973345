// Package document defines the shared data model for the document
// core: source identity, formats, metadata, load results, progress
// reporting and the load error taxonomy.
package document

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Type identifies a document format. The set is closed; loaders declare
// which members they support.
type Type string

const (
	TypeText     Type = "text"
	TypeMarkdown Type = "markdown"
	TypeLog      Type = "log"
	TypeJSON     Type = "json"
	TypeCSV      Type = "csv"
	TypeHTML     Type = "html"
	TypeUnknown  Type = "unknown"
)

// typeByExtension maps lowercase file extensions to document types.
var typeByExtension = map[string]Type{
	".txt":  TypeText,
	".text": TypeText,
	".log":  TypeLog,
	".md":   TypeMarkdown,
	".json": TypeJSON,
	".csv":  TypeCSV,
	".html": TypeHTML,
	".htm":  TypeHTML,
}

// DetectType returns the document type for a source based on its
// extension, or TypeUnknown.
func DetectType(source string) Type {
	ext := strings.ToLower(filepath.Ext(source))
	if t, ok := typeByExtension[ext]; ok {
		return t
	}
	return TypeUnknown
}

// ResolveSource normalizes a source string into a stable identity used
// as the cache key. Paths that exist on disk resolve to their absolute
// cleaned form so that "./a.txt" and "/cwd/a.txt" share one cache
// entry; anything else is used verbatim.
func ResolveSource(source string) string {
	if _, err := os.Stat(source); err == nil {
		if abs, err := filepath.Abs(source); err == nil {
			return filepath.Clean(abs)
		}
	}
	return source
}

// Metadata describes a loaded document. It is recomputed whenever a
// stale entry is reloaded.
type Metadata struct {
	Source     string            `json:"source"`
	Type       Type              `json:"type"`
	SizeBytes  int64             `json:"size_bytes"`
	Checksum   string            `json:"checksum,omitempty"`
	ModifiedAt time.Time         `json:"modified_at,omitzero"`
	CreatedAt  time.Time         `json:"created_at,omitzero"`
	Encoding   string            `json:"encoding,omitempty"`
	MIMEType   string            `json:"mime_type,omitempty"`
	Custom     map[string]string `json:"custom,omitempty"`
}

// Result is the outcome of a successful load. Content is held as the
// chunk sequence the loader produced.
type Result struct {
	Content  [][]byte
	Metadata Metadata
	LoadTime time.Duration
}

// Size returns the total content size in bytes.
func (r *Result) Size() int64 {
	var n int64
	for _, c := range r.Content {
		n += int64(len(c))
	}
	return n
}

// Text joins all content chunks into a single string.
func (r *Result) Text() string {
	var sb strings.Builder
	sb.Grow(int(r.Size()))
	for _, c := range r.Content {
		sb.Write(c)
	}
	return sb.String()
}

// Checksum computes the xxhash64 digest of the given chunks, hex
// encoded.
func Checksum(chunks [][]byte) string {
	h := xxhash.New()
	for _, c := range chunks {
		_, _ = h.Write(c)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}
