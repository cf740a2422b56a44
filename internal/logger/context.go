package logger

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey struct{}

// WithContext returns a new context carrying logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default(). It never returns nil.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithCycle tags the context logger with a fresh cycle_id so every line of one
// scheduler tick or backfill window can be correlated.
func WithCycle(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	return WithContext(ctx, FromContext(ctx).With(slog.String("cycle_id", id))), id
}
