// Package loader defines the streaming read contract implemented per
// document format, a registry for explicit format dispatch, and a
// reference text loader.
//
// Loaders are deliberately narrow: they answer format support, extract
// metadata, and stream content in chunks. Progress is derived by the
// caller from bytes consumed; adapters hold no lock beyond a single
// chunk read and never push callbacks themselves.
package loader

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/Kikk79/docstore/pkg/document"
)

// DefaultChunkSize is the chunk size used when a caller passes 0.
const DefaultChunkSize = 8 * 1024

// Loader is the per-format streaming read contract.
//
// Implementations must be safe for concurrent use; each Open call
// returns an independent stream. A stream is finite and restartable by
// a fresh Open.
type Loader interface {
	// SupportsFormat reports whether this loader handles the source.
	SupportsFormat(source string) bool

	// ExtractMetadata returns metadata for the source without reading
	// its full content.
	ExtractMetadata(ctx context.Context, source string) (document.Metadata, error)

	// Open starts streaming the source in chunks of at most chunkSize
	// bytes (DefaultChunkSize when 0).
	Open(ctx context.Context, source string, chunkSize int) (ChunkStream, error)
}

// ChunkStream yields consecutive content chunks. Next returns io.EOF
// after the final chunk. Streams are single-use.
type ChunkStream interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// ReadAll drains a loader's stream into a complete Result, deriving
// progress from bytes consumed. onProgress may be nil. This is the
// default full-read derivation every loader gets for free; the caller
// (not the adapter) owns the progress cadence.
func ReadAll(ctx context.Context, l Loader, source string, chunkSize int, onProgress document.ProgressFunc) (*document.Result, error) {
	start := time.Now()

	meta, err := l.ExtractMetadata(ctx, source)
	if err != nil {
		return nil, err
	}

	stream, err := l.Open(ctx, source, chunkSize)
	if err != nil {
		return nil, err
	}
	defer func() { _ = stream.Close() }()

	tracker := document.NewProgressTracker(meta.SizeBytes)
	var chunks [][]byte
	for {
		if err := ctx.Err(); err != nil {
			return nil, wrapContextErr(source, err)
		}
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
		tracker.Add(len(chunk))
		if onProgress != nil {
			onProgress(tracker.Snapshot())
		}
	}

	if onProgress != nil {
		onProgress(tracker.Final())
	}

	meta.Checksum = document.Checksum(chunks)
	return &document.Result{
		Content:  chunks,
		Metadata: meta,
		LoadTime: time.Since(start),
	}, nil
}

// wrapContextErr maps context termination onto the load error taxonomy.
func wrapContextErr(source string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return document.NewTimeoutError(source, err)
	}
	return err
}
