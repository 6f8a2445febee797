package task

import (
	"encoding/json"
	"fmt"
)

// wireInvocation mirrors the queue task body. Fields are decoded
// individually so each one can be checked for presence and shape before
// anything derived from the payload is touched.
type wireInvocation struct {
	Name   *json.RawMessage `json:"task_path"`
	Args   *json.RawMessage `json:"args"`
	Kwargs *json.RawMessage `json:"kwargs"`
	Queue  string           `json:"queue_name"`
}

// Encode serializes an invocation into the queue task body. Nil args and
// kwargs are normalized to empty collections so every encoded body decodes
// back to an equal invocation.
func Encode(inv *Invocation) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("%w: invocation is nil", ErrInvalidInvocation)
	}

	if inv.Name == "" {
		return nil, fmt.Errorf("%w: task name is empty", ErrInvalidInvocation)
	}

	normalized := *inv
	if normalized.Args == nil {
		normalized.Args = []any{}
	}

	if normalized.Kwargs == nil {
		normalized.Kwargs = map[string]any{}
	}

	body, err := json.Marshal(&normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvocation, err)
	}

	return body, nil
}

// Decode parses and validates a queue task body. Every field is required
// and type-checked; a body that fails here is permanently malformed and
// redelivery will not help.
func Decode(body []byte) (*Invocation, error) {
	var wire wireInvocation
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvocation, err)
	}

	inv := &Invocation{Queue: wire.Queue}

	if wire.Name == nil {
		return nil, fmt.Errorf("%w: missing task_path", ErrInvalidInvocation)
	}

	if err := json.Unmarshal(*wire.Name, &inv.Name); err != nil {
		return nil, fmt.Errorf("%w: task_path must be a string", ErrInvalidInvocation)
	}

	if inv.Name == "" {
		return nil, fmt.Errorf("%w: task_path is empty", ErrInvalidInvocation)
	}

	if wire.Args == nil {
		return nil, fmt.Errorf("%w: missing args", ErrInvalidInvocation)
	}

	if err := json.Unmarshal(*wire.Args, &inv.Args); err != nil || inv.Args == nil {
		return nil, fmt.Errorf("%w: args must be a list", ErrInvalidInvocation)
	}

	if wire.Kwargs == nil {
		return nil, fmt.Errorf("%w: missing kwargs", ErrInvalidInvocation)
	}

	if err := json.Unmarshal(*wire.Kwargs, &inv.Kwargs); err != nil || inv.Kwargs == nil {
		return nil, fmt.Errorf("%w: kwargs must be an object", ErrInvalidInvocation)
	}

	return inv, nil
}
