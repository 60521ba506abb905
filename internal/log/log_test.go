package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWithWriter_TextOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})
	logger.Info("saving artifact", "artifact_id", "art-1")

	out := buf.String()
	if !strings.Contains(out, "saving artifact") {
		t.Errorf("expected message in output, got: %s", out)
	}
	if !strings.Contains(out, "artifact_id=art-1") {
		t.Errorf("expected attribute in output, got: %s", out)
	}
}

func TestNewWithWriter_JSONOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{JSON: true})
	logger.Info("stream finished", "events", 5)

	out := buf.String()
	if !strings.Contains(out, `"msg":"stream finished"`) {
		t.Errorf("expected JSON msg field, got: %s", out)
	}
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, Config{Level: slog.LevelInfo})
	logger.Debug("below threshold")
	logger.Warn("above threshold")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Error("debug record should be filtered out at info level")
	}
	if !strings.Contains(out, "above threshold") {
		t.Error("warn record should pass the info threshold")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: " warn ", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLevel(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLevel(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maquette.log")

	logger, closeFn, err := NewFile(path, Config{})
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	logger.Info("written to file")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("expected record in file, got: %s", data)
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	if logger == nil {
		t.Fatal("NewNop returned nil")
	}
	logger.Error("discarded")
}
