package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsComponent(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&syncWriter{w: &buf}, lvl))

	logger = NewComponentLogger(logger, "store")
	logger.Info("cache hit", String(FieldKey, "abc123"), Duration(FieldDuration, 3*time.Millisecond))

	line := buf.String()
	if !strings.Contains(line, "[store]") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "cache hit") {
		t.Fatalf("expected message, got %q", line)
	}
	if !strings.Contains(line, "key=abc123") {
		t.Fatalf("expected key attr, got %q", line)
	}
	if !strings.Contains(line, "duration=3ms") {
		t.Fatalf("expected duration attr, got %q", line)
	}
}

func TestConsoleHandlerQuotesSpacedValues(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&syncWriter{w: &buf}, lvl))

	logger.Warn("lookup degraded", String("file_name", "My Song.mp3"))
	if !strings.Contains(buf.String(), `file_name="My Song.mp3"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"unknown": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("should not panic", Error(nil))
}
