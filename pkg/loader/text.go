package loader

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Kikk79/docstore/pkg/document"
)

// TextLoader streams plain-text formats (.txt, .log, .md) from the
// local filesystem. It is the reference Loader implementation; richer
// formats plug in through the same contract.
type TextLoader struct {
	chunkSize int
}

// NewTextLoader creates a text loader with the default chunk size.
func NewTextLoader() *TextLoader {
	return &TextLoader{chunkSize: DefaultChunkSize}
}

var textExtensions = map[string]bool{
	".txt":  true,
	".text": true,
	".log":  true,
	".md":   true,
}

// SupportsFormat reports whether the source has a plain-text extension.
func (t *TextLoader) SupportsFormat(source string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(source))]
}

// ExtractMetadata stats the source without reading content. The
// checksum is left empty; ReadAll fills it once content is streamed.
func (t *TextLoader) ExtractMetadata(ctx context.Context, source string) (document.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return document.Metadata{}, wrapContextErr(source, err)
	}

	info, err := os.Stat(source)
	if err != nil {
		return document.Metadata{}, mapFSError(source, err)
	}
	if info.IsDir() {
		return document.Metadata{}, document.NewCorruptedError(source, "source is a directory", nil)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(source))
	if mimeType == "" {
		mimeType = "text/plain"
	}

	return document.Metadata{
		Source:     document.ResolveSource(source),
		Type:       document.DetectType(source),
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
		Encoding:   "utf-8",
		MIMEType:   mimeType,
	}, nil
}

// Open starts streaming the file in chunkSize pieces.
func (t *TextLoader) Open(ctx context.Context, source string, chunkSize int) (ChunkStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(source, err)
	}
	if chunkSize <= 0 {
		chunkSize = t.chunkSize
	}

	f, err := os.Open(source)
	if err != nil {
		return nil, mapFSError(source, err)
	}

	return &textStream{
		source:    source,
		f:         f,
		chunkSize: chunkSize,
	}, nil
}

// textStream reads consecutive chunks from an open file. No lock is
// held between Next calls.
type textStream struct {
	source    string
	f         *os.File
	chunkSize int
	read      int64
	checked   bool
}

func (s *textStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapContextErr(s.source, err)
	}

	buf := make([]byte, s.chunkSize)
	n, err := s.f.Read(buf)
	if n > 0 {
		chunk := buf[:n]
		s.read += int64(n)

		// Validate encoding on the first chunk only; a file that
		// starts as valid UTF-8 is treated as text throughout.
		if !s.checked {
			s.checked = true
			if !validTextPrefix(chunk) {
				return nil, document.NewEncodingError(s.source,
					"content is not valid UTF-8", nil)
			}
		}
		return chunk, nil
	}
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if err != nil {
		return nil, document.NewCorruptedError(s.source, "read failed", err)
	}
	return nil, io.EOF
}

func (s *textStream) Close() error {
	return s.f.Close()
}

// validTextPrefix checks that a chunk starts with decodable UTF-8,
// tolerating a rune cut off at the chunk boundary.
func validTextPrefix(chunk []byte) bool {
	// Trim up to utf8.UTFMax-1 trailing bytes that may be a split rune.
	end := len(chunk)
	for trim := 0; trim < utf8.UTFMax-1 && end > 0; trim++ {
		if utf8.Valid(chunk[:end]) {
			return true
		}
		end--
	}
	return end > 0 && utf8.Valid(chunk[:end])
}

// mapFSError translates filesystem errors into the load taxonomy.
func mapFSError(source string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return document.NewNotFoundError(source, err)
	case errors.Is(err, fs.ErrPermission):
		return document.NewPermissionError(source, err)
	default:
		return document.NewCorruptedError(source, "cannot access source", err)
	}
}
