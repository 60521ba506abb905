// Package log builds the application's slog loggers.
//
// Maquette injects loggers instead of using a global: every component takes
// a log.Logger in its constructor and narrows it with logger.With. The TUI
// owns the terminal, so interactive runs log to a file under the state
// directory rather than stderr; the serve command logs to stderr as usual.
//
//	logger := log.New(log.Config{Level: slog.LevelDebug, JSON: true})
//	saver := conversation.NewAutoSaver(store, logger.With("component", "autosave"))
//
// Tests use log.NewNop, or NewWithWriter over a bytes.Buffer when they
// assert on output.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger aliases *slog.Logger so call sites keep the full slog API
// without an interface wrapper.
type Logger = *slog.Logger

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted. Zero value is slog.LevelInfo.
	Level slog.Level

	// JSON switches from the text handler to the JSON handler.
	JSON bool

	// AddSource annotates records with file and line.
	AddSource bool
}

// ParseLevel maps a configuration string to a slog level. Accepted values
// are debug, info, warn and error, case-insensitive.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a logger writing to stderr.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// NewFile returns a logger appending to path, creating the file if needed,
// plus a close function. Used by the interactive TUI, which cannot share
// the terminal with log output.
func NewFile(path string, cfg Config) (Logger, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return NewWithWriter(f, cfg), f.Close, nil
}

// NewNop returns a logger that discards everything. Test use only;
// production paths always construct a real handler.
func NewNop() Logger {
	return slog.New(slog.DiscardHandler)
}
