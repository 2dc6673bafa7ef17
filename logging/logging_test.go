package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNew_ConsoleLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Level = "WARN"
	log, closer := New(cfg, &buf)
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", "quest", "boxes")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("INFO record passed a WARN logger")
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "quest=boxes") {
		t.Errorf("output = %q", out)
	}
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.ConsoleFormat = "json"
	log, _ := New(cfg, &buf)

	log.Info("hello")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}
}

func TestNew_FileAndConsole(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := DefaultConfig()
	cfg.FileEnabled = true
	cfg.FilePath = path
	cfg.FileFormat = "json"

	log, closer := New(cfg, &buf)
	log.With("component", "quest").Info("state changed")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"component":"quest"`) {
		t.Errorf("file = %q", data)
	}
	if !strings.Contains(buf.String(), "component=quest") {
		t.Errorf("console = %q", buf.String())
	}
}

func TestNew_NothingEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ConsoleEnabled = false
	log, closer := New(cfg, nil)
	log.Error("dropped")
	if err := closer.Close(); err != nil {
		t.Errorf("nop closer returned %v", err)
	}
}

func TestValidLevel(t *testing.T) {
	if !ValidLevel("warn") || ValidLevel("loud") {
		t.Error("ValidLevel mismatch")
	}
}
