package task

import "errors"

var (
	ErrInvalidInvocation = errors.New("invalid task invocation")
	ErrUnknownTask       = errors.New("task is not registered")
	ErrDuplicateTask     = errors.New("task is already registered")
)
