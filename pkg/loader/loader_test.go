package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Kikk79/docstore/pkg/document"
)

// writeFixture creates a file under a temp dir and returns its path.
func writeFixture(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestTextLoaderSupportsFormat(t *testing.T) {
	l := NewTextLoader()
	for _, src := range []string{"a.txt", "b.LOG", "c.md", "d.text"} {
		if !l.SupportsFormat(src) {
			t.Errorf("SupportsFormat(%q) = false, want true", src)
		}
	}
	for _, src := range []string{"a.pdf", "b.exe", "c"} {
		if l.SupportsFormat(src) {
			t.Errorf("SupportsFormat(%q) = true, want false", src)
		}
	}
}

func TestTextLoaderStreamsChunks(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 100) // 1000 bytes
	path := writeFixture(t, "doc.txt", content)

	l := NewTextLoader()
	stream, err := l.Open(context.Background(), path, 256)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	var got []byte
	chunks := 0
	for {
		chunk, err := stream.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if len(chunk) > 256 {
			t.Fatalf("chunk of %d bytes exceeds chunk size", len(chunk))
		}
		got = append(got, chunk...)
		chunks++
	}

	if !bytes.Equal(got, content) {
		t.Fatal("streamed content differs from file content")
	}
	if chunks != 4 {
		t.Fatalf("chunks = %d, want 4", chunks)
	}
}

func TestTextLoaderErrorMapping(t *testing.T) {
	l := NewTextLoader()
	ctx := context.Background()

	_, err := l.ExtractMetadata(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	if !document.IsNotFound(err) {
		t.Fatalf("missing file should map to not-found, got %v", err)
	}

	_, err = l.Open(ctx, filepath.Join(t.TempDir(), "missing.txt"), 0)
	if !document.IsNotFound(err) {
		t.Fatalf("Open on missing file should map to not-found, got %v", err)
	}
}

func TestTextLoaderRejectsBinary(t *testing.T) {
	// Invalid UTF-8 from the first byte.
	path := writeFixture(t, "bin.txt", []byte{0xff, 0xfe, 0x00, 0x01})

	l := NewTextLoader()
	stream, err := l.Open(context.Background(), path, 0)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = stream.Close() }()

	_, err = stream.Next(context.Background())
	le, ok := document.AsLoadError(err)
	if !ok || le.Code != document.ErrEncoding {
		t.Fatalf("binary content should yield an encoding error, got %v", err)
	}
	if le.Severity != document.SeverityWarning {
		t.Fatalf("encoding errors are warnings, got %v", le.Severity)
	}
}

func TestReadAll(t *testing.T) {
	content := []byte(strings.Repeat("line of text\n", 64))
	path := writeFixture(t, "doc.md", content)

	var reports []document.Progress
	result, err := ReadAll(context.Background(), NewTextLoader(), path, 64, func(p document.Progress) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}

	if result.Size() != int64(len(content)) {
		t.Fatalf("Size = %d, want %d", result.Size(), len(content))
	}
	if result.Metadata.Type != document.TypeMarkdown {
		t.Fatalf("Type = %q, want markdown", result.Metadata.Type)
	}
	if result.Metadata.Checksum == "" {
		t.Fatal("ReadAll should compute a checksum")
	}
	if result.LoadTime <= 0 {
		t.Fatal("LoadTime not recorded")
	}

	if len(reports) == 0 {
		t.Fatal("no progress reports")
	}
	final := reports[len(reports)-1]
	if final.Percentage != 100.0 {
		t.Fatalf("final progress = %f%%, want 100%%", final.Percentage)
	}
}

func TestReadAllDeadline(t *testing.T) {
	path := writeFixture(t, "doc.txt", []byte("content"))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := ReadAll(ctx, NewTextLoader(), path, 0, nil)
	if !document.IsTimeout(err) {
		t.Fatalf("expired deadline should surface as timeout, got %v", err)
	}
}

func TestStreamRestartable(t *testing.T) {
	path := writeFixture(t, "doc.txt", []byte("restartable"))
	l := NewTextLoader()
	ctx := context.Background()

	for range 2 {
		stream, err := l.Open(ctx, path, 0)
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		chunk, err := stream.Next(ctx)
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if string(chunk) != "restartable" {
			t.Fatalf("chunk = %q", chunk)
		}
		_ = stream.Close()
	}
}

// fakeLoader supports a single extension; used for registry dispatch
// tests.
type fakeLoader struct{ ext string }

func (f *fakeLoader) SupportsFormat(source string) bool {
	return strings.HasSuffix(source, f.ext)
}

func (f *fakeLoader) ExtractMetadata(_ context.Context, source string) (document.Metadata, error) {
	return document.Metadata{Source: source}, nil
}

func (f *fakeLoader) Open(context.Context, string, int) (ChunkStream, error) {
	return nil, errors.New("not implemented")
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	pdf := &fakeLoader{ext: ".pdf"}
	csv := &fakeLoader{ext: ".csv"}
	r.Register(pdf)
	r.Register(csv)

	got, err := r.ForSource("report.pdf")
	if err != nil {
		t.Fatalf("ForSource failed: %v", err)
	}
	if got != pdf {
		t.Fatal("dispatched to wrong loader")
	}

	_, err = r.ForSource("image.png")
	le, ok := document.AsLoadError(err)
	if !ok || le.Code != document.ErrUnsupportedFormat {
		t.Fatalf("unsupported source should yield unsupported-format, got %v", err)
	}
}

func TestDefaultRegistryHandlesText(t *testing.T) {
	r := NewDefaultRegistry()
	if _, err := r.ForSource("notes.txt"); err != nil {
		t.Fatalf("default registry should handle .txt: %v", err)
	}
}
