// Package plan implements the Planner (C7), which compiles a user query
// plus the live Registry into a graph.Graph, and the Executor (C9), the
// DAG scheduler that walks that graph to completion.
package plan

import "encoding/json"

// ActivityType is the wire-level tag distinguishing how an activity is
// dispatched, matching the LLM-facing WorkflowPlanInput schema (§6).
type ActivityType string

const (
	DelegationAgent     ActivityType = "delegation_agent"
	DirectToolUse       ActivityType = "direct_tool_use"
	DirectTaskExecution ActivityType = "direct_task_execution"
)

// AgentConfigInput carries agent-dispatch hints for one activity.
type AgentConfigInput struct {
	SkillToUse                string `json:"skill_to_use,omitempty"`
	AssignedAgentIDPreference string `json:"assigned_agent_id_preference,omitempty"`
}

// ToolConfigInput carries tool-dispatch hints for one activity.
type ToolConfigInput struct {
	ToolToUse      string          `json:"tool_to_use,omitempty"`
	ToolParameters json.RawMessage `json:"tool_parameters,omitempty"`
}

// TaskConfigInput carries task-dispatch hints for one activity.
type TaskConfigInput struct {
	TaskToUse      string          `json:"task_to_use,omitempty"`
	TaskParameters json.RawMessage `json:"task_parameters,omitempty"`
}

// DependencyInput names an upstream activity id and an optional
// condition gating the edge (§4.1).
type DependencyInput struct {
	Source    string `json:"source"`
	Condition string `json:"condition,omitempty"`
}

// ActivityInput is one entry of a WorkflowPlanInput's activities list,
// the shape the LLM is prompted to emit (§6).
type ActivityInput struct {
	ActivityType    ActivityType      `json:"activity_type"`
	ID              string            `json:"id"`
	Description     string            `json:"description"`
	AgentConfig     *AgentConfigInput `json:"agent_config,omitempty"`
	ToolConfig      *ToolConfigInput  `json:"tool_config,omitempty"`
	TaskConfig      *TaskConfigInput  `json:"task_config,omitempty"`
	Dependencies    []DependencyInput `json:"dependencies,omitempty"`
	ExpectedOutcome string            `json:"expected_outcome,omitempty"`

	// MaxRetries bounds how many additional attempts the Executor makes
	// after this activity's dispatch fails, with the same 1s/2s/4s...
	// exponential backoff the reference engine uses. Zero (the default)
	// means no retry.
	MaxRetries int `json:"max_retries,omitempty"`

	// DefaultNext names the activity to run instead, this round, when
	// every one of this activity's conditional dependencies evaluates
	// false — the graph analogue of the reference engine's per-step
	// branch fallback.
	DefaultNext string `json:"default_next,omitempty"`
}

// WorkflowPlanInput is the LLM's plan response, and the workflow file
// format consumed when `workflow_url` is given (§6).
type WorkflowPlanInput struct {
	PlanName   string          `json:"plan_name"`
	Activities []ActivityInput `json:"activities"`
}
