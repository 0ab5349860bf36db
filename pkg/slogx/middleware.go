package slogx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/quizforge/quizauth/pkg/idx"
)

// HTTPMiddleware logs one line per request and seeds the request context
// with a contextual logger. Handlers deeper in the chain attach attributes
// through WithAttrs, which is how authenticated requests end up in the
// request log with their principal.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			// Honor an upstream request ID, mint one otherwise, and echo it
			// back so clients can quote it in reports.
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = idx.New().String()
			}
			w.Header().Set("X-Request-ID", reqID)

			logger := base.With(
				"req_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ex := &extras{}
			ctx := WithContext(r.Context(), logger)
			ctx = context.WithValue(ctx, extrasKey{}, ex)

			next.ServeHTTP(rw, r.WithContext(ctx))

			args := []any{
				"status", rw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"bytes", rw.written,
				"user_agent", r.UserAgent(),
			}
			logger.Info("http_request", append(args, ex.snapshot()...)...)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter

	status  int
	written int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.written += int64(n)
	return n, err
}
