package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSetup(t *testing.T) {
	// Reset logger for testing
	logger = nil
	once = *new(sync.Once)

	Setup("DEBUG", "json")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected DEBUG to be enabled after Setup(\"DEBUG\")")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "text").Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("text handler output = %q, want key=value form", buf.String())
	}

	buf.Reset()
	newLogger(&buf, "info", "json").Info("hello")
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("json handler output not JSON: %v", err)
	}

	buf.Reset()
	newLogger(&buf, "warn", "json").Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info record should be filtered at warn level, got %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent("webhook").Info("hello")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["component"] != "webhook" {
		t.Errorf("Expected component 'webhook', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithRequest(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithRequest(nil, "req-123").Info("request msg")

	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["request_id"] != "req-123" {
		t.Errorf("Expected request_id 'req-123', got %v", out["request_id"])
	}
}

func TestWithRequest_UsesBase(t *testing.T) {
	var global, own bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&global, nil))
	base := slog.New(slog.NewJSONHandler(&own, nil)).With("component", "webhook")

	WithRequest(base, "req-456").Info("handled")

	if global.Len() != 0 {
		t.Errorf("global logger written to: %s", global.String())
	}
	var out map[string]any
	if err := json.Unmarshal(own.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if out["request_id"] != "req-456" || out["component"] != "webhook" {
		t.Errorf("unexpected fields: %v", out)
	}
}
