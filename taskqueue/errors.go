package taskqueue

import "errors"

var (
	ErrCreateTask    = errors.New("failed to create cloud task")
	ErrQueueNotFound = errors.New("queue does not exist")
	ErrInvalidTask   = errors.New("invalid task request")
)
