// Package backend turns task invocations into Cloud Tasks queue entries.
// It owns target resolution, body serialization, the OIDC callback
// descriptor, and the optional commit-deferred submission mode.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/camuthig/go-tasks-gcp/internal/observability/logging"
	"github.com/camuthig/go-tasks-gcp/internal/observability/tracing"
	"github.com/camuthig/go-tasks-gcp/task"
	"github.com/camuthig/go-tasks-gcp/taskqueue"
	"github.com/google/uuid"
)

const moduleName logging.Module = "backend"

type Backend struct {
	cfg    *Config
	client taskqueue.Client
	logger *slog.Logger
}

// New validates the configuration and returns a backend submitting through
// the given queue client. The backend does not own the client's lifecycle.
func New(cfg *Config, client taskqueue.Client) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if client == nil {
		return nil, fmt.Errorf("%w: queue client is nil", ErrInvalidConfig)
	}

	return &Backend{
		cfg:    cfg,
		client: client,
		logger: slog.Default().With(slog.String("module", string(moduleName))),
	}, nil
}

// Enqueue submits one invocation to its queue and returns the created
// task's identity. Transport and service failures are surfaced wrapped in
// ErrEnqueue; the backend never retries on the caller's behalf.
//
// When the backend is configured with EnqueueOnCommit and the context
// carries a commit boundary (WithTxHooks), the submission is deferred onto
// it and the queue service is not called until the boundary commits. A
// context without hooks submits immediately even in that mode, matching
// the behavior of committing outside a unit of work.
func (b *Backend) Enqueue(ctx context.Context, inv *task.Invocation) (*task.Result, error) {
	if b.cfg.EnqueueOnCommit {
		if hooks := TxHooksFromContext(ctx); hooks != nil {
			return b.EnqueueDeferred(ctx, hooks, inv)
		}
	}

	req, result, err := b.buildRequest(ctx, inv)
	if err != nil {
		return nil, err
	}

	if err := b.submit(ctx, req, result); err != nil {
		return nil, err
	}

	return result, nil
}

// EnqueueDeferred registers the submission on the supplied commit hooks
// instead of performing it. The returned result carries the pre-generated
// task ID; the queue service call happens when the hooks commit and never
// happens if they abort.
func (b *Backend) EnqueueDeferred(ctx context.Context, hooks *TxHooks, inv *task.Invocation) (*task.Result, error) {
	if hooks == nil {
		return nil, fmt.Errorf("%w: commit hooks are nil", ErrEnqueue)
	}

	req, result, err := b.buildRequest(ctx, inv)
	if err != nil {
		return nil, err
	}

	hooks.Defer(result.ID, func(ctx context.Context) error {
		return b.submit(ctx, req, result)
	})

	b.logger.DebugContext(ctx, "task submission deferred to commit",
		slog.String("task_id", result.ID),
		slog.String("queue", inv.Queue),
	)

	return result, nil
}

func (b *Backend) buildRequest(ctx context.Context, inv *task.Invocation) (taskqueue.CreateTaskRequest, *task.Result, error) {
	if inv == nil {
		return taskqueue.CreateTaskRequest{}, nil, fmt.Errorf("%w: invocation is nil", ErrEnqueue)
	}

	queue, err := b.cfg.queue(inv.Queue)
	if err != nil {
		return taskqueue.CreateTaskRequest{}, nil, err
	}

	target, err := b.cfg.target(queue)
	if err != nil {
		return taskqueue.CreateTaskRequest{}, nil, err
	}

	body, err := task.Encode(inv)
	if err != nil {
		return taskqueue.CreateTaskRequest{}, nil, err
	}

	headers := map[string]string{"Content-Type": "application/json"}
	tracing.InjectToMap(ctx, headers)

	if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
		headers["x-request-id"] = requestID
	}

	serviceAccount := queue.ServiceAccountEmail
	if serviceAccount == "" {
		serviceAccount = b.cfg.ServiceAccountEmail
	}

	req := taskqueue.CreateTaskRequest{
		QueuePath:    b.cfg.QueuePath(queue.Name),
		TaskID:       uuid.NewString(),
		TargetURL:    target,
		HTTPMethod:   queue.HTTPMethod,
		Headers:      headers,
		Body:         body,
		ScheduleTime: inv.ScheduleAt,
	}

	if serviceAccount != "" {
		req.OIDC = &taskqueue.OIDCToken{
			ServiceAccountEmail: serviceAccount,
			Audience:            target,
		}
	}

	return req, &task.Result{ID: req.TaskID}, nil
}

func (b *Backend) submit(ctx context.Context, req taskqueue.CreateTaskRequest, result *task.Result) error {
	resp, err := b.client.CreateTask(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEnqueue, err)
	}

	result.Name = resp.Name
	result.EnqueuedAt = time.Now().UTC()

	b.logger.InfoContext(ctx, "task enqueued",
		slog.String("task_name", resp.Name),
		slog.String("task_id", result.ID),
	)

	return nil
}
