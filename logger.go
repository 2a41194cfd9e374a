package quantpool

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with quantpool-specific context.
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

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFeature adds a feature index field to the logger.
func (l *Logger) WithFeature(featureID uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("feature", featureID),
	}
}

// WithDocCount adds a document count field to the logger.
func (l *Logger) WithDocCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("doc_count", count),
	}
}

// LogBlock logs the append of one document block.
func (l *Logger) LogBlock(ctx context.Context, blockSize, total int) {
	l.DebugContext(ctx, "block appended",
		"block_size", blockSize,
		"doc_count", total,
	)
}

// LogFeatureSkipped logs a feature that produced no column.
func (l *Logger) LogFeatureSkipped(ctx context.Context, featureID uint32, kind ValueKind, reason string) {
	l.DebugContext(ctx, "feature skipped",
		"feature", featureID,
		"kind", kind.String(),
		"reason", reason,
	)
}

// LogFinish logs the outcome of a Finish call.
func (l *Logger) LogFinish(ctx context.Context, docs, columns int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"doc_count", docs,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "build completed",
			"doc_count", docs,
			"columns", columns,
			"duration", duration,
		)
	}
}
