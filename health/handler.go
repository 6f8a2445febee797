package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// LiveHandler answers liveness probes. It never runs the registered
// checks; a serving process is a live process.
func (c *Checker) LiveHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(r, w, http.StatusOK, map[string]any{
		"status": "ok",
		"checks": c.names(),
	})
}

// ReadyHandler answers readiness probes by running every registered check
// and reporting per-dependency detail.
func (c *Checker) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	report := c.Check(r.Context())

	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	writeJSON(r, w, code, report)
}

func writeJSON(r *http.Request, w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.WarnContext(r.Context(), "failed to write health response",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
}
