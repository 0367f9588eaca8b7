package console

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestConsoleLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewConsoleLogger(ConsoleLoggerParams{Format: "json", Prefix: "worker", Output: &buf})

	l.Warn("[Normalize] Dropped judgment", "reason", "self_reference", "product_id", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "[Normalize] Dropped judgment" || entry["reason"] != "self_reference" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if entry["prefix"] != "worker" {
		t.Fatalf("expected prefix worker, got %v", entry["prefix"])
	}
}

func TestConsoleLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleLogger(ConsoleLoggerParams{Output: &buf}).Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug output without Debug: %q", buf.String())
	}

	NewConsoleLogger(ConsoleLoggerParams{Debug: true, Output: &buf}).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected debug output, got %q", buf.String())
	}
}
