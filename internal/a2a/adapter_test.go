package a2a

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork/orchestrator/internal/llm"
	"github.com/meshwork/orchestrator/internal/plan"
)

type stubChatCompleter struct {
	content string
}

func (s *stubChatCompleter) Chat(_ context.Context, _ []llm.Message, _ []llm.ToolDefinition) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Message:      llm.Message{Role: llm.RoleAssistant, Content: s.content},
		FinishReason: llm.FinishStop,
	}, nil
}

type stubTaskInvoker struct{}

func (stubTaskInvoker) Invoke(_ context.Context, _ string, params json.RawMessage) (json.RawMessage, error) {
	return params, nil
}

func TestAdapter_HighLevelPlanOnly(t *testing.T) {
	planner := plan.NewPlanner(&stubChatCompleter{content: "1. do a thing\n2. do another"}, nil)
	adapter := NewAdapter(planner, &plan.Executor{})

	task := adapter.HandleMessage(context.Background(), Message{
		Role:      RoleUser,
		Parts:     []Part{{Kind: TextPart, Text: "plan something"}},
		MessageID: "m1",
		Metadata:  map[string]json.RawMessage{"high_level_plan": json.RawMessage("true")},
	})

	require.Equal(t, TaskCompleted, task.Status.State)
	assert.Contains(t, task.Status.Message.Text(), "do a thing")
}

func TestAdapter_DynamicPlanExecutesAndCompletes(t *testing.T) {
	planJSON := `{
		"plan_name": "demo",
		"activities": [
			{"activity_type": "direct_task_execution", "id": "step1", "description": "say hi",
			 "task_config": {"task_to_use": "greet", "task_parameters": {"name": "ada"}}}
		]
	}`
	planner := plan.NewPlanner(&stubChatCompleter{content: planJSON}, nil)
	executor := &plan.Executor{Tasks: stubTaskInvoker{}}
	adapter := NewAdapter(planner, executor)

	task := adapter.HandleMessage(context.Background(), Message{
		Role:      RoleUser,
		Parts:     []Part{{Kind: TextPart, Text: "say hi to ada"}},
		MessageID: "m2",
	})

	require.Equal(t, TaskCompleted, task.Status.State)
	assert.Contains(t, task.Status.Message.Text(), "ada")
}

func TestAdapter_FailedPlanProducesFailedTask(t *testing.T) {
	planner := plan.NewPlanner(&stubChatCompleter{content: "not json at all {{{"}, nil)
	adapter := NewAdapter(planner, &plan.Executor{})

	task := adapter.HandleMessage(context.Background(), Message{
		Role:      RoleUser,
		Parts:     []Part{{Kind: TextPart, Text: "break the planner"}},
		MessageID: "m3",
	})

	require.Equal(t, TaskFailed, task.Status.State)
	assert.NotEmpty(t, task.Status.Message.Text())
}
