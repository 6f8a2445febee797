package taskqueue

import (
	"context"
	"fmt"
	"time"
)

// NoopClient accepts every task without talking to any queue service. It
// keeps local development and tests off the network.
type NoopClient struct{}

func NewNoopClient() *NoopClient {
	return &NoopClient{}
}

func (c *NoopClient) CreateTask(_ context.Context, req CreateTaskRequest) (*TaskResponse, error) {
	name := "noop"
	if req.QueuePath != "" && req.TaskID != "" {
		name = fmt.Sprintf("%s/tasks/%s", req.QueuePath, req.TaskID)
	}

	return &TaskResponse{
		Name:       name,
		CreateTime: time.Now().UTC(),
	}, nil
}

func (c *NoopClient) Close() error {
	return nil
}
