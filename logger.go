package graphbeam

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with graphbeam-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that writes JSON-formatted logs to w.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that writes human-readable text logs to w.
func NewTextLogger(w io.Writer, level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithNode adds the node id to the logger.
func (l *Logger) WithNode(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("node", id),
	}
}

// WithLevel adds a level (vertex count) field to the logger.
func (l *Logger) WithLevel(n int) *Logger {
	return &Logger{
		Logger: l.Logger.With("level", n),
	}
}

// LogLevelComplete logs a merged level. Use WithLevel to attach its size.
func (l *Logger) LogLevelComplete(ctx context.Context, retained int, duration time.Duration) {
	l.InfoContext(ctx, "level complete",
		"graphs", retained,
		"duration", duration,
	)
}

// LogSearch logs the outcome of a search.
func (l *Logger) LogSearch(ctx context.Context, startN, finalN, nodes int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"start_n", startN,
			"final_n", finalN,
			"nodes", nodes,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "search completed",
			"start_n", startN,
			"final_n", finalN,
			"nodes", nodes,
			"duration", duration,
		)
	}
}

// LogPublish logs a report export.
func (l *Logger) LogPublish(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "publish failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "report published",
			"name", name,
		)
	}
}
