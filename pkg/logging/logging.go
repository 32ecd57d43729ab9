// Package logging owns the process-wide structured logger. Every component
// derives its logger from here so output format and level are controlled
// centrally via DATATALK_LOG_FORMAT and DATATALK_LOG_LEVEL.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	mu            sync.RWMutex
	defaultLogger *slog.Logger
)

// Logger returns the process-wide logger, lazily initialised from the
// environment:
//   - DATATALK_LOG_FORMAT: "json" (default) or "text"
//   - DATATALK_LOG_LEVEL: debug|info|warn|error
func Logger() *slog.Logger {
	mu.RLock()
	if defaultLogger != nil {
		defer mu.RUnlock()
		return defaultLogger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		defaultLogger = slog.New(newHandler()).With("service", "datatalk")
	}
	return defaultLogger
}

// SetLogger overrides the global logger; mainly useful for tests.
func SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

// WithComponent attaches a component field to the shared logger.
func WithComponent(component string) *slog.Logger {
	return Logger().With("component", component)
}

func newHandler() slog.Handler {
	opts := &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("DATATALK_LOG_LEVEL")),
	}
	if strings.ToLower(os.Getenv("DATATALK_LOG_FORMAT")) == "text" {
		return slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.NewJSONHandler(os.Stdout, opts)
}

func parseLevel(env string) slog.Level {
	switch strings.ToLower(env) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
