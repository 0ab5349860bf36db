package slogx

import (
	"context"
	"log/slog"
	"sync"
)

type ctxKey struct{}

func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

func FromContext(ctx context.Context) *slog.Logger {
	l, ok := ctx.Value(ctxKey{}).(*slog.Logger)
	if !ok {
		return slog.Default()
	}
	return l
}

// extras collects attributes added mid-request so the completion line in
// HTTPMiddleware carries them too. Guarded because the guard's async
// activity touch can log from another goroutine.
type extras struct {
	mu   sync.Mutex
	args []any
}

type extrasKey struct{}

func (e *extras) add(args ...any) {
	e.mu.Lock()
	e.args = append(e.args, args...)
	e.mu.Unlock()
}

func (e *extras) snapshot() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]any, len(e.args))
	copy(out, e.args)
	return out
}

// WithAttrs rebinds the contextual logger with extra attributes so every
// later log line in the request carries them, and records them for the
// request completion line (e.g. the authenticated principal once the auth
// middleware has resolved it).
func WithAttrs(ctx context.Context, args ...any) context.Context {
	if e, ok := ctx.Value(extrasKey{}).(*extras); ok {
		e.add(args...)
	}
	return WithContext(ctx, FromContext(ctx).With(args...))
}
