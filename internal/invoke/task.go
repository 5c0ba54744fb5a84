package invoke

import (
	"context"
	"encoding/json"
	"fmt"
)

// TaskFunc is a single in-process task closure, registered under a
// task id and dispatched to directly (§4.3).
type TaskFunc func(ctx context.Context, params json.RawMessage) (json.RawMessage, error)

// InProcessTaskInvoker dispatches by task_id to a registered closure.
type InProcessTaskInvoker struct {
	tasks map[string]TaskFunc
}

// NewInProcessTaskInvoker returns an invoker with no tasks registered.
func NewInProcessTaskInvoker() *InProcessTaskInvoker {
	return &InProcessTaskInvoker{tasks: make(map[string]TaskFunc)}
}

// Register adds or replaces the closure for taskID.
func (inv *InProcessTaskInvoker) Register(taskID string, fn TaskFunc) {
	inv.tasks[taskID] = fn
}

// Invoke dispatches to the closure registered under taskID.
func (inv *InProcessTaskInvoker) Invoke(ctx context.Context, taskID string, params json.RawMessage) (json.RawMessage, error) {
	ctx, done := startSpan(ctx, "task", taskID)
	out, err := inv.invoke(ctx, taskID, params)
	done(err)
	return out, err
}

func (inv *InProcessTaskInvoker) invoke(ctx context.Context, taskID string, params json.RawMessage) (json.RawMessage, error) {
	fn, ok := inv.tasks[taskID]
	if !ok {
		return nil, &Error{Kind: "task", Target: taskID, Err: fmt.Errorf("no task registered for id %q", taskID)}
	}
	out, err := fn(ctx, params)
	if err != nil {
		return nil, &Error{Kind: "task", Target: taskID, Err: err}
	}
	return out, nil
}
