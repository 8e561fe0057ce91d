// Package logging wraps log/slog with the conventions shared by the
// CapyCode backend services: JSON output by default, string levels in
// config, and request IDs pulled from the context when present.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/skaisay/capycode-frontend-sub002/internal/middleware"
)

// Logger embeds *slog.Logger and adds context-aware helpers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger for the given level ("debug", "info", "warn",
// "error") and format ("json" or "text"). Unknown values fall back to
// info/json.
func New(level, format string) *Logger {
	lvl := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level: lvl,
		// Source locations only when the service runs error-only logging
		AddSource: lvl >= slog.LevelError,
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// Default returns a Logger backed by slog.Default.
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// WithContext returns the underlying slog.Logger enriched with the
// request ID carried by ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		return l.Logger.With(slog.String("request_id", reqID))
	}
	return l.Logger
}

// With returns a new Logger with the given attributes added.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unknown values.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as the process-wide default logger, affecting
// both slog.Default() and the log package.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
