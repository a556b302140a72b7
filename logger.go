package revindex

import (
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/revindex/model"
)

// Logger wraps slog.Logger with index-specific context.
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
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithOperation adds an operation id field to the logger.
func (l *Logger) WithOperation(id model.OperationID) *Logger {
	return &Logger{
		Logger: l.Logger.With("op", id.Hex()),
	}
}

// WithSegment adds a segment name field to the logger.
func (l *Logger) WithSegment(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("segment", name),
	}
}

// LogLoad logs loading the index of an operation.
func (l *Logger) LogLoad(segments int, d time.Duration, err error) {
	if err != nil {
		l.Warn("index load failed",
			"segments", segments,
			"error", err,
		)
	} else {
		l.Debug("index loaded",
			"segments", segments,
			"took", d,
		)
	}
}

// LogWrite logs writing the index of an operation.
func (l *Logger) LogWrite(bytes int, d time.Duration, err error) {
	if err != nil {
		l.Error("index write failed",
			"bytes", bytes,
			"error", err,
		)
	} else {
		l.Debug("index written",
			"bytes", bytes,
			"took", d,
		)
	}
}

// LogCompaction logs levels being folded into a new segment.
func (l *Logger) LogCompaction(folded int) {
	l.Debug("levels squashed",
		"folded", folded,
	)
}

// LogRecovery logs rebuilding an index from the operation log.
func (l *Logger) LogRecovery(commits int, d time.Duration, err error) {
	if err != nil {
		l.Error("index rebuild failed",
			"commits_indexed", commits,
			"error", err,
		)
	} else {
		l.Info("index rebuild completed",
			"commits_indexed", commits,
			"took", d,
		)
	}
}
