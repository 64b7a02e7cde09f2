// Package logging provides the process-wide structured logger.
// Records are JSON lines appended to a file chosen at start-up.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	logger  *slog.Logger
	out     *os.File
	mu      sync.RWMutex
	discard = slog.New(slog.NewJSONHandler(io.Discard, nil))
)

// ParseLevel maps a configured level name to a slog level. The empty string
// selects info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Init points the logger at path, opened in append mode. An empty path
// disables logging. When the file cannot be opened the logger falls back to
// discarding records and the error is returned.
func Init(path string, level slog.Level) error {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		out.Close()
		out = nil
	}

	var (
		w   io.Writer = io.Discard
		err error
	)
	if path != "" {
		w, err = open(path)
		if err != nil {
			w = io.Discard
		}
	}

	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return err
}

func open(path string) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	out = f
	return f, nil
}

// Close closes the log file. Later records are discarded.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	logger = nil
	if out == nil {
		return nil
	}
	err := out.Close()
	out = nil
	return err
}

// Logger returns the current logger, or one that discards everything when
// Init has not been called.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if logger == nil {
		return discard
	}
	return logger
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// DebugContext logs at debug level with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	Logger().DebugContext(ctx, msg, args...)
}

// WarnContext logs at warning level with context.
func WarnContext(ctx context.Context, msg string, args ...any) {
	Logger().WarnContext(ctx, msg, args...)
}

// With returns a logger carrying the given attributes.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}
