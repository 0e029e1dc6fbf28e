package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	handler := newConsoleHandler(&buf, levelVar, false)
	logger := slog.New(handler)

	logger = WithComponent(logger, "server")
	logger.Info("api server listening", String("address", "127.0.0.1:0"))

	line := buf.String()
	if !strings.Contains(line, "[server]") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "address=127.0.0.1:0") {
		t.Fatalf("expected address attr, got %q", line)
	}
	if !strings.Contains(line, "INFO") {
		t.Fatalf("expected level label, got %q", line)
	}
}

func TestConsoleHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	handler := newConsoleHandler(&buf, levelVar, false)

	if handler.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("info should be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("error should be enabled at warn level")
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, levelVar, false))

	logger.Warn("something odd", Int("count", 3))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if decoded["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", decoded["level"])
	}
	if decoded["msg"] != "something odd" {
		t.Fatalf("unexpected msg: %v", decoded["msg"])
	}
	if _, ok := decoded["ts"]; !ok {
		t.Fatal("expected ts field")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewNopDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
