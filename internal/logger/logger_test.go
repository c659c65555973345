package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestTextOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "DEBUG", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	Info("document loaded", "source", "/tmp/a.txt", "size", 42)

	out := buf.String()
	if !strings.Contains(out, "document loaded") {
		t.Fatalf("missing message in output: %q", out)
	}
	if !strings.Contains(out, "source=/tmp/a.txt") {
		t.Fatalf("missing source field in output: %q", out)
	}
	if !strings.Contains(out, "size=42") {
		t.Fatalf("missing size field in output: %q", out)
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "json")
	defer InitWithWriter(&buf, "INFO", "text")

	Warn("eviction", "evicted", 3)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if record["msg"] != "eviction" {
		t.Fatalf("msg = %v, want eviction", record["msg"])
	}
	if record["evicted"] != float64(3) {
		t.Fatalf("evicted = %v, want 3", record["evicted"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "WARN", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	Debug("should not appear")
	Info("should not appear either")
	Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("low-level records leaked through: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestContextFields(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "INFO", "text")
	defer InitWithWriter(&buf, "INFO", "text")

	ctx := WithContext(context.Background(), NewLogContext("op-1", "/tmp/doc.md"))
	InfoCtx(ctx, "progress")

	out := buf.String()
	if !strings.Contains(out, "operation_id=op-1") {
		t.Fatalf("missing operation_id field: %q", out)
	}
	if !strings.Contains(out, "source=/tmp/doc.md") {
		t.Fatalf("missing source field: %q", out)
	}
}
