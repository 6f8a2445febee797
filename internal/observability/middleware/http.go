// Package middleware provides the HTTP middleware shared by the worker
// endpoints: request logging with request-ID propagation and panic
// recovery.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/camuthig/go-tasks-gcp/internal/observability/logging"
)

const requestIDHeader = "x-request-id"

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging logs one line per request and threads a validated request
// ID through the context and the response header.
func RequestLogging(module logging.Module) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := logging.ValidateAndExtractRequestID(r.Header.Get(requestIDHeader))

			ctx := logging.WithRequestID(r.Context(), requestID)
			if module != "" {
				ctx = logging.WithModule(ctx, module)
			}

			w.Header().Set(requestIDHeader, requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status >= http.StatusInternalServerError {
				slog.ErrorContext(ctx, "request failed",
					slog.String("event", "http.request.fail"),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", rec.status),
					slog.Duration("duration", time.Since(start)),
				)
			} else {
				slog.InfoContext(ctx, "request completed",
					slog.String("event", "http.request.finish"),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", rec.status),
					slog.Duration("duration", time.Since(start)),
				)
			}
		})
	}
}
