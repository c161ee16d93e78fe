// ABOUTME: Tests for logger setup
// ABOUTME: Covers level parsing and file output
package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    log.Level
		wantErr bool
	}{
		{"", log.InfoLevel, false},
		{"INFO", log.InfoLevel, false},
		{"debug", log.DebugLevel, false},
		{"warning", log.WarnLevel, false},
		{"error", log.ErrorLevel, false},
		{"chatty", log.InfoLevel, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLogFile(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "speaker.log")
	closer, err := Setup(Options{Level: "info", File: path, Quiet: true})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	log.Debug("hidden at info")
	log.Info("session started", "id", "abc")
	if err := closer(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "session started") || !strings.Contains(out, "id=abc") {
		t.Errorf("log file missing entry: %q", out)
	}
	if strings.Contains(out, "hidden at info") {
		t.Errorf("debug entry leaked at info level: %q", out)
	}
}

func TestSetupDebugOverridesLevel(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	closer, err := Setup(Options{Level: "error", Debug: true, Quiet: true})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer closer()

	if log.GetLevel() != log.DebugLevel {
		t.Errorf("expected debug level, got %v", log.GetLevel())
	}
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
