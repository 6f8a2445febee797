// Package worker implements the HTTP endpoint the queue service calls to
// deliver tasks. Requests are authenticated before the body is parsed, the
// invocation is resolved against the task registry, and the execution
// outcome is mapped onto the status codes that drive the queue service's
// retry behavior: 2xx acknowledges, 4xx is permanent, 5xx redelivers.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/camuthig/go-tasks-gcp/authn"
	"github.com/camuthig/go-tasks-gcp/internal/observability/logging"
	"github.com/camuthig/go-tasks-gcp/internal/observability/tracing"
	"github.com/camuthig/go-tasks-gcp/task"
)

const moduleName logging.Module = "worker"

// Cloud Tasks caps HTTP task bodies at 1 MiB; anything larger is not a
// legitimate delivery.
const maxBodyBytes = 1 << 20

type Handler struct {
	auth     authn.Authenticator
	registry *task.Registry
	logger   *slog.Logger
}

// NewHandler wires the callback endpoint. Authentication happens before
// body parsing on purpose: the endpoint can be open to the world, and
// configuration-only rejection keeps unauthenticated payloads unparsed.
func NewHandler(auth authn.Authenticator, registry *task.Registry) (*Handler, error) {
	if auth == nil {
		return nil, fmt.Errorf("authenticator is not configured")
	}

	if registry == nil {
		return nil, fmt.Errorf("task registry is not configured")
	}

	return &Handler{
		auth:     auth,
		registry: registry,
		logger:   slog.Default().With(slog.String("module", string(moduleName))),
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := tracing.ExtractFromHTTPRequest(r)

	if r.Method != http.MethodPost {
		respond(ctx, w, http.StatusMethodNotAllowed, false)
		return
	}

	identity, err := h.auth.Verify(ctx, r)
	if err != nil {
		h.logger.WarnContext(ctx, "callback authentication failed",
			slog.String("error", err.Error()),
		)

		respond(ctx, w, http.StatusUnauthorized, false)

		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respond(ctx, w, http.StatusBadRequest, false)
		return
	}

	inv, err := task.Decode(body)
	if err != nil {
		h.logger.WarnContext(ctx, "malformed task body",
			slog.String("error", err.Error()),
		)

		respond(ctx, w, http.StatusBadRequest, false)

		return
	}

	fn, err := h.registry.Resolve(inv.Name)
	if err != nil {
		h.logger.WarnContext(ctx, "callback for unregistered task",
			slog.String("task", inv.Name),
		)

		respond(ctx, w, http.StatusBadRequest, false)

		return
	}

	delivery := deliveryFromHeaders(r)
	ctx = withDelivery(ctx, delivery)
	ctx = withIdentity(ctx, identity)

	h.logger.InfoContext(ctx, "task started",
		slog.String("task", inv.Name),
		slog.String("task_name", delivery.TaskName),
		slog.Int("attempt", delivery.Attempt()),
	)

	if err := runTask(ctx, fn, inv); err != nil {
		// 5xx tells the queue service to redeliver per its backoff policy.
		h.logger.ErrorContext(ctx, "task failed",
			slog.String("task", inv.Name),
			slog.String("task_name", delivery.TaskName),
			slog.Int("attempt", delivery.Attempt()),
			slog.String("error", err.Error()),
		)

		respond(ctx, w, http.StatusInternalServerError, false)

		return
	}

	h.logger.InfoContext(ctx, "task finished",
		slog.String("task", inv.Name),
		slog.String("task_name", delivery.TaskName),
	)

	respond(ctx, w, http.StatusOK, true)
}

// runTask executes the task function, converting a panic into an ordinary
// execution failure so a crashing task is redelivered, not lost.
func runTask(ctx context.Context, fn task.Func, inv *task.Invocation) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task panicked: %v", rec)
		}
	}()

	return fn(ctx, inv.Args, inv.Kwargs)
}

func respond(ctx context.Context, w http.ResponseWriter, status int, success bool) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]bool{"success": success}); err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.WarnContext(ctx, "failed to write callback response",
				slog.String("error", err.Error()),
			)
		}
	}
}
