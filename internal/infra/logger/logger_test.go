package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vocabchat/internal/infra/config"
)

func TestNewTextLogger(t *testing.T) {
	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: "discard"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closer()
	if log == nil {
		t.Fatal("nil logger")
	}
	log.Info("hello")
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocabchat.log")
	log, closer, err := New(config.LoggerConfig{Level: "debug", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	log.Debug("written to file", "k", "v")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("log file permissions = %o, want 600", perm)
	}
}

func TestNewBadFilePath(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
