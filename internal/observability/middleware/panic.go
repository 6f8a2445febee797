package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// PanicRecovery converts a panicking handler into a 500 response. The queue
// service treats a 5xx as a transient failure and redelivers, which is the
// right outcome for a crashed task.
func PanicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer func(ctx context.Context) {
			if rec := recover(); rec != nil {
				slog.ErrorContext(ctx, "panic recovered",
					slog.String("event", "app.panic"),
					slog.Any("error", rec),
				)

				w.WriteHeader(http.StatusInternalServerError)
			}
		}(ctx)

		next.ServeHTTP(w, r)
	})
}
