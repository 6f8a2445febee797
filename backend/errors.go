package backend

import "errors"

var (
	ErrInvalidConfig = errors.New("backend configuration is invalid")
	ErrUnknownQueue  = errors.New("queue is not configured")
	ErrMissingTarget = errors.New("queue has no target URL")
	ErrEnqueue       = errors.New("failed to enqueue task")
)
