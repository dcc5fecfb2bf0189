package shared

import (
	"bytes"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	seen := map[string]bool{}
	for range 10 {
		id := GenerateID()
		if id == "" {
			t.Fatal("expected non-empty ID")
		}
		if seen[id] {
			t.Fatalf("duplicate ID generated: %s", id)
		}
		seen[id] = true
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	logger.Info("hello", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "hello") {
		t.Errorf("expected log output to contain message, got %q", out)
	}
	if !strings.Contains(out, "value") {
		t.Errorf("expected log output to contain key-value pair, got %q", out)
	}
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf)

	child := WithLogger(logger, "component", "worker")
	child.Info("picked up task")

	if !strings.Contains(buf.String(), "worker") {
		t.Errorf("expected child logger to carry component field, got %q", buf.String())
	}
}
