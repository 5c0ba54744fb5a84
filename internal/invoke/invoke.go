// Package invoke implements the three-interface invoker abstraction
// (§4.3) the Executor dispatches activities through, uniformly, without
// caring whether the target is a remote agent, an MCP tool, or an
// in-process task closure.
package invoke

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orchestrator")

// startSpan opens one of the invoker.{agent,tool,task} spans named in
// the observability surface, tagging it with the dispatch target, and
// returns a done func that records err (if any) and ends the span.
func startSpan(ctx context.Context, kind, target string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, "invoker."+kind, trace.WithAttributes(
		attribute.String(kind+".target", target),
	))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AgentInvoker sends a message to a remote agent and returns its reply
// as JSON.
type AgentInvoker interface {
	Interact(ctx context.Context, agentID, message, skill string) (json.RawMessage, error)
}

// ToolInvoker invokes an MCP tool with structured parameters.
type ToolInvoker interface {
	Invoke(ctx context.Context, toolID string, params json.RawMessage) (json.RawMessage, error)
}

// TaskInvoker invokes an in-process task closure with structured
// parameters.
type TaskInvoker interface {
	Invoke(ctx context.Context, taskID string, params json.RawMessage) (json.RawMessage, error)
}

// Error wraps an underlying transport/dispatch error with the target
// id, so the Executor can attach it to the failing activity (§7).
type Error struct {
	Kind   string // "agent" | "tool" | "task"
	Target string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s invoker for %q failed: %v", e.Kind, e.Target, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
