// Package logging wraps log/slog with tabula-specific fields and operation
// helpers.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with consistent field names for table and
// conversion operations.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(1000),
		})),
	}
}

// OrNoop returns l, or a NoopLogger when l is nil.
func OrNoop(l *Logger) *Logger {
	if l == nil {
		return NoopLogger()
	}
	return l
}

// WithTable adds the table kind and shape.
func (l *Logger) WithTable(kind string, rows, cols int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", kind, "rows", rows, "cols", cols),
	}
}

// WithDevice adds the device name.
func (l *Logger) WithDevice(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("device", name),
	}
}

// LogPull logs a block pull.
func (l *Logger) LogPull(ctx context.Context, kind string, dt string, start, end int64, aliased bool, err error) {
	if err != nil {
		l.ErrorContext(ctx, "pull failed",
			"table", kind,
			"dtype", dt,
			"start", start,
			"end", end,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "pull completed",
		"table", kind,
		"dtype", dt,
		"start", start,
		"end", end,
		"aliased", aliased,
	)
}

// LogPush logs a block push.
func (l *Logger) LogPush(ctx context.Context, kind string, dt string, start, end int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "push failed",
			"table", kind,
			"dtype", dt,
			"start", start,
			"end", end,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "push completed",
		"table", kind,
		"dtype", dt,
		"start", start,
		"end", end,
	)
}

// LogConversion logs one dispatched conversion group.
func (l *Logger) LogConversion(ctx context.Context, from, to string, jobs, elements int, parallel bool) {
	l.DebugContext(ctx, "conversion dispatched",
		"from", from,
		"to", to,
		"jobs", jobs,
		"elements", elements,
		"parallel", parallel,
	)
}

// LogTransfer logs a staged host/device transfer.
func (l *Logger) LogTransfer(ctx context.Context, direction string, bytes int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "transfer failed",
			"direction", direction,
			"bytes", bytes,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "transfer completed",
		"direction", direction,
		"bytes", bytes,
	)
}

// LogArchive logs a catalog save or load.
func (l *Logger) LogArchive(ctx context.Context, op, name string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive "+op+" failed",
			"name", name,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "archive "+op+" completed",
		"name", name,
		"bytes", bytes,
	)
}
