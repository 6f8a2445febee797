package backend

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// TxHooks collects deferred submissions behind an explicit commit boundary.
// The caller creates one per unit of work, passes it to EnqueueDeferred,
// and signals the outcome: Commit runs every registered hook exactly once,
// Abort discards them. There is no ambient transaction context; the
// boundary is always supplied explicitly.
type TxHooks struct {
	mu       sync.Mutex
	resolved bool
	keys     []string
	hooks    map[string]func(context.Context) error
}

func NewTxHooks() *TxHooks {
	return &TxHooks{hooks: make(map[string]func(context.Context) error)}
}

// Defer registers a hook under a key. Re-registering the same key replaces
// the hook rather than queueing a duplicate. Registration after the hooks
// have resolved is dropped: the unit of work is already over.
func (h *TxHooks) Defer(key string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.resolved || fn == nil {
		return
	}

	if _, ok := h.hooks[key]; !ok {
		h.keys = append(h.keys, key)
	}

	h.hooks[key] = fn
}

// Commit runs the registered hooks in registration order and resolves the
// boundary. A second Commit is a no-op. Hook failures do not stop the
// remaining hooks; the errors are joined.
func (h *TxHooks) Commit(ctx context.Context) error {
	h.mu.Lock()

	if h.resolved {
		h.mu.Unlock()
		return nil
	}

	h.resolved = true
	keys := h.keys
	hooks := h.hooks
	h.keys = nil
	h.hooks = nil
	h.mu.Unlock()

	var errs []error

	for _, key := range keys {
		if err := hooks[key](ctx); err != nil {
			slog.ErrorContext(ctx, "deferred enqueue failed on commit",
				slog.String("task_id", key),
				slog.String("error", err.Error()),
			)

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Abort resolves the boundary without running anything. Hooks registered
// before the abort never fire.
func (h *TxHooks) Abort() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.resolved = true
	h.keys = nil
	h.hooks = nil
}

type txHooksKey struct{}

// WithTxHooks attaches a commit boundary to the context. A backend
// configured with EnqueueOnCommit defers submissions onto it instead of
// calling the queue service from Enqueue.
func WithTxHooks(ctx context.Context, hooks *TxHooks) context.Context {
	return context.WithValue(ctx, txHooksKey{}, hooks)
}

// TxHooksFromContext returns the commit boundary attached with WithTxHooks,
// or nil when the context carries none.
func TxHooksFromContext(ctx context.Context) *TxHooks {
	hooks, ok := ctx.Value(txHooksKey{}).(*TxHooks)
	if !ok {
		return nil
	}

	return hooks
}
