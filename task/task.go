// Package task defines the task invocation model shared by the enqueue
// backend and the callback worker, together with the process-wide registry
// that maps task names to registered functions.
package task

import (
	"context"
	"time"
)

// Func is the signature every registered task must satisfy. Args and kwargs
// carry whatever the producer serialized; tasks are responsible for their
// own argument validation.
type Func func(ctx context.Context, args []any, kwargs map[string]any) error

// Invocation is one deferred call of a registered task. It is the unit the
// enqueue backend serializes into the queue task body and the worker decodes
// back out of the callback request.
type Invocation struct {
	// Name is the registry identifier of the task to run. The wire key is
	// task_path for compatibility with the queue body format.
	Name   string         `json:"task_path"`
	Args   []any          `json:"args"`
	Kwargs map[string]any `json:"kwargs"`
	Queue  string         `json:"queue_name"`

	// ScheduleAt delays delivery until the given time. It is delivery
	// metadata, not callable input, and is not part of the serialized body.
	ScheduleAt *time.Time `json:"-"`
}

// Result is returned to the caller of an enqueue. Execution happens later
// and out of process, so it carries no execution outcome.
type Result struct {
	// ID is the client-generated task identifier.
	ID string
	// Name is the full task resource name assigned by the queue service.
	// Empty until the task has actually been submitted.
	Name string
	// EnqueuedAt is when the submission succeeded.
	EnqueuedAt time.Time
}
