package kmeanslab

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with kmeanslab-specific context.
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
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithSession adds a session ID field to the logger.
func (l *Logger) WithSession(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("session", id),
	}
}

// WithK adds a k (cluster count) field to the logger.
func (l *Logger) WithK(k int) *Logger {
	return &Logger{
		Logger: l.Logger.With("k", k),
	}
}

// WithDimension adds a dimension field to the logger.
func (l *Logger) WithDimension(dim int) *Logger {
	return &Logger{
		Logger: l.Logger.With("dimension", dim),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogInitialize logs an initialize operation.
func (l *Logger) LogInitialize(ctx context.Context, cfg Config, points int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "initialize failed",
			"init", cfg.Init.String(),
			"k", cfg.K,
			"points", points,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "session initialized",
			"init", cfg.Init.String(),
			"k", cfg.K,
			"points", points,
			"max_iter", cfg.MaxIter,
		)
	}
}

// LogStep logs a single assign/update cycle.
func (l *Logger) LogStep(ctx context.Context, iteration int, converged bool, reseeded []int, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "step failed",
			"error", err,
		)
	case len(reseeded) > 0:
		l.WarnContext(ctx, "step reseeded empty clusters",
			"iteration", iteration,
			"clusters", reseeded,
			"converged", converged,
		)
	default:
		l.DebugContext(ctx, "step completed",
			"iteration", iteration,
			"converged", converged,
		)
	}
}

// LogRun logs a run-to-completion operation.
func (l *Logger) LogRun(ctx context.Context, res RunResult, err error) {
	switch {
	case err != nil:
		l.ErrorContext(ctx, "run failed",
			"error", err,
		)
	case res.CapReached:
		l.WarnContext(ctx, "run stopped at iteration cap without convergence",
			"iterations", res.Iterations,
		)
	default:
		l.InfoContext(ctx, "run converged",
			"iterations", res.Iterations,
		)
	}
}

// LogPredict logs a predict operation.
func (l *Logger) LogPredict(ctx context.Context, points int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "predict failed",
			"points", points,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "predict completed",
			"points", points,
		)
	}
}

// LogReset logs a reset operation.
func (l *Logger) LogReset(ctx context.Context) {
	l.DebugContext(ctx, "session reset")
}

// LogSnapshot logs a snapshot save.
func (l *Logger) LogSnapshot(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"name", name,
		)
	}
}

// LogRestore logs a session restore from a snapshot.
func (l *Logger) LogRestore(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "session restored",
			"name", name,
		)
	}
}
