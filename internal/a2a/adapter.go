package a2a

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/meshwork/orchestrator/internal/plan"
)

// Adapter is the A2A boundary: it turns an inbound Message into a Plan,
// runs the Plan to completion, and wraps the result back into a single
// Text-part Message carried by a terminal Task (§4.7).
type Adapter struct {
	Planner  *plan.Planner
	Executor *plan.Executor
}

// NewAdapter returns an Adapter driving planner and executor.
func NewAdapter(planner *plan.Planner, executor *plan.Executor) *Adapter {
	return &Adapter{Planner: planner, Executor: executor}
}

// HandleMessage implements the inbound half of the A2A boundary: plan,
// then (unless the caller only asked for a high-level plan) execute,
// and report a single terminal Task either way.
func (a *Adapter) HandleMessage(ctx context.Context, msg Message) *Task {
	query := msg.Text()

	result, err := a.Planner.Plan(ctx, query, msg.Metadata)
	if err != nil {
		log.Error().Err(err).Msg("planning failed")
		return failedTask(err)
	}

	if result.PlanOnly {
		return completedTask(result.PlanText)
	}

	execResult, err := a.Executor.Execute(ctx, result.Graph)
	if err != nil {
		log.Error().Err(err).Msg("executor internal error")
		return failedTask(err)
	}
	if !execResult.Success {
		log.Warn().Err(execResult.Err).Str("activity_id", execResult.FailedActivityID).Msg("plan run failed")
		return failedTask(execResult.Err)
	}

	return completedTask(stringifyOutput(execResult.Output))
}

func completedTask(text string) *Task {
	return &Task{
		ID: uuid.New().String(),
		Status: Status{
			State: TaskCompleted,
			Message: &Message{
				Role:      RoleAgent,
				Parts:     []Part{{Kind: TextPart, Text: text}},
				MessageID: uuid.New().String(),
			},
		},
	}
}

func failedTask(err error) *Task {
	return &Task{
		ID: uuid.New().String(),
		Status: Status{
			State: TaskFailed,
			Message: &Message{
				Role:      RoleAgent,
				Parts:     []Part{{Kind: TextPart, Text: err.Error()}},
				MessageID: uuid.New().String(),
			},
		},
	}
}

func stringifyOutput(output json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(output, &v); err != nil {
		return string(output)
	}
	if s, ok := v.(string); ok {
		return s
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(output)
	}
	return fmt.Sprintf("%s", pretty)
}
