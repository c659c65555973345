package document

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDetectType(t *testing.T) {
	tests := []struct {
		source string
		want   Type
	}{
		{"notes.txt", TypeText},
		{"README.md", TypeMarkdown},
		{"server.LOG", TypeLog},
		{"data.json", TypeJSON},
		{"table.csv", TypeCSV},
		{"page.html", TypeHTML},
		{"archive.tar.gz", TypeUnknown},
		{"noextension", TypeUnknown},
	}
	for _, tt := range tests {
		if got := DetectType(tt.source); got != tt.want {
			t.Errorf("DetectType(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func TestResolveSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	// Existing files resolve to a stable absolute identity.
	abs := ResolveSource(path)
	if !filepath.IsAbs(abs) {
		t.Fatalf("ResolveSource(%q) = %q, not absolute", path, abs)
	}
	if again := ResolveSource(abs); again != abs {
		t.Fatalf("identity not stable: %q != %q", again, abs)
	}

	// Non-files pass through verbatim.
	const url = "https://example.com/doc"
	if got := ResolveSource(url); got != url {
		t.Fatalf("ResolveSource(%q) = %q, want verbatim", url, got)
	}
}

func TestResultTextAndSize(t *testing.T) {
	r := &Result{Content: [][]byte{[]byte("hello "), []byte("world")}}
	if r.Size() != 11 {
		t.Fatalf("Size = %d, want 11", r.Size())
	}
	if r.Text() != "hello world" {
		t.Fatalf("Text = %q", r.Text())
	}
}

func TestChecksumStable(t *testing.T) {
	a := Checksum([][]byte{[]byte("abc"), []byte("def")})
	b := Checksum([][]byte{[]byte("abcdef")})
	if a != b {
		t.Fatalf("checksum depends on chunking: %q != %q", a, b)
	}
	if a == Checksum([][]byte{[]byte("abcdeg")}) {
		t.Fatal("different content produced same checksum")
	}
}

func TestLoadErrorClassification(t *testing.T) {
	cause := errors.New("open: no such file")
	err := NewNotFoundError("/missing.txt", cause)

	if !IsNotFound(err) {
		t.Fatal("IsNotFound should match")
	}
	if IsTimeout(err) {
		t.Fatal("IsTimeout should not match a not-found error")
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause lost")
	}

	le, ok := AsLoadError(err)
	if !ok {
		t.Fatal("AsLoadError failed")
	}
	if le.Suggestion == "" {
		t.Fatal("constructor should fill a remediation suggestion")
	}

	// Wrapped chains still classify.
	wrapped := errorsJoin(err)
	if !IsNotFound(wrapped) {
		t.Fatal("classification should survive wrapping")
	}
}

func errorsJoin(err error) error {
	return &wrapper{err}
}

type wrapper struct{ err error }

func (w *wrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *wrapper) Unwrap() error { return w.err }

func TestProgressTracker(t *testing.T) {
	p := NewProgressTracker(100)
	p.Add(25)
	p.Add(25)

	s := p.Snapshot()
	if s.BytesProcessed != 50 {
		t.Fatalf("BytesProcessed = %d, want 50", s.BytesProcessed)
	}
	if s.CurrentChunk != 2 {
		t.Fatalf("CurrentChunk = %d, want 2", s.CurrentChunk)
	}
	if s.Percentage != 50.0 {
		t.Fatalf("Percentage = %f, want 50", s.Percentage)
	}

	f := p.Final()
	if f.Percentage != 100.0 {
		t.Fatalf("Final percentage = %f, want 100", f.Percentage)
	}
	if f.EstimatedRemaining != 0 {
		t.Fatalf("Final estimate = %v, want 0", f.EstimatedRemaining)
	}
}

func TestProgressUnknownTotal(t *testing.T) {
	p := NewProgressTracker(0)
	p.Add(10)
	if s := p.Snapshot(); s.Percentage != 0 {
		t.Fatalf("unknown total should not produce a percentage, got %f", s.Percentage)
	}
	if f := p.Final(); f.Percentage != 100.0 || f.TotalBytes != 10 {
		t.Fatalf("Final = %+v, want 100%% of 10 bytes", f)
	}
}
