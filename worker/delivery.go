package worker

import (
	"context"
	"net/http"
	"strconv"

	"github.com/camuthig/go-tasks-gcp/authn"
)

// Delivery is the per-attempt metadata the queue service sends alongside a
// task. Tasks that need at-least-once awareness (dedup keys, attempt
// limits) read it from the context.
type Delivery struct {
	// TaskName is the full task resource name.
	TaskName string
	// QueueName is the short name of the delivering queue.
	QueueName string
	// RetryCount is zero on the first attempt.
	RetryCount int
}

// Attempt numbers delivery attempts from one.
func (d Delivery) Attempt() int {
	return d.RetryCount + 1
}

type contextKey string

const (
	deliveryKey contextKey = "delivery"
	identityKey contextKey = "identity"
)

func deliveryFromHeaders(r *http.Request) Delivery {
	retryCount, err := strconv.Atoi(r.Header.Get("X-CloudTasks-TaskRetryCount"))
	if err != nil || retryCount < 0 {
		retryCount = 0
	}

	return Delivery{
		TaskName:   r.Header.Get("X-CloudTasks-TaskName"),
		QueueName:  r.Header.Get("X-CloudTasks-QueueName"),
		RetryCount: retryCount,
	}
}

func withDelivery(ctx context.Context, d Delivery) context.Context {
	return context.WithValue(ctx, deliveryKey, d)
}

// DeliveryFromContext returns the delivery metadata for the running task.
func DeliveryFromContext(ctx context.Context) (Delivery, bool) {
	d, ok := ctx.Value(deliveryKey).(Delivery)
	return d, ok
}

func withIdentity(ctx context.Context, identity *authn.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the authenticated caller identity for the
// running task.
func IdentityFromContext(ctx context.Context) (*authn.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*authn.Identity)
	return identity, ok
}
