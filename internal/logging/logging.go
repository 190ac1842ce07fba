// Package logging carries a slog.Logger through context.Context so the
// scheduler, executor adapters, and archiver share one configured logger.
package logging

import (
	"context"
	"io"
	"log/slog"
)

// ctxKey is unexported to prevent collisions with other packages' context keys.
type ctxKey struct{}

// New builds the process logger writing text records to w.
// Verbose enables debug records.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// WithLogger returns a new context with the provided logger embedded.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts the logger from ctx. If none is embedded it
// returns the default global logger.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
