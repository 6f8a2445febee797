// Package taskqueue wraps the Google Cloud Tasks task-creation API behind a
// small client interface so the enqueue backend can be exercised against
// fakes and a noop implementation in local development.
package taskqueue

import (
	"context"
	"time"
)

type Client interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (*TaskResponse, error)
	Close() error
}

// OIDCToken describes the identity token the queue service mints and
// attaches to the callback request on delivery.
type OIDCToken struct {
	ServiceAccountEmail string
	Audience            string
}

type CreateTaskRequest struct {
	// QueuePath is the full queue resource name,
	// projects/<p>/locations/<l>/queues/<q>.
	QueuePath string
	// TaskID names the task within the queue when set; the service picks a
	// name otherwise.
	TaskID       string
	TargetURL    string
	HTTPMethod   string
	Headers      map[string]string
	Body         []byte
	OIDC         *OIDCToken
	ScheduleTime *time.Time
}

type TaskResponse struct {
	Name       string
	CreateTime time.Time
}
