package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/meshwork/orchestrator/internal/graph"
	"github.com/meshwork/orchestrator/internal/llm"
	"github.com/meshwork/orchestrator/internal/registry"
)

// ChatCompleter is the narrow llm.Client surface the Planner needs,
// kept as an interface so tests can stub it without an HTTP server.
type ChatCompleter interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition) (*llm.ChatResponse, error)
}

// Planner turns a user query plus the live Registry into a graph.Graph,
// or (in high-level mode) a plain textual plan (§4.4).
type Planner struct {
	LLM      ChatCompleter
	Registry *registry.Registry
}

// NewPlanner returns a Planner prompting through llmClient and
// describing capabilities from reg.
func NewPlanner(llmClient ChatCompleter, reg *registry.Registry) *Planner {
	return &Planner{LLM: llmClient, Registry: reg}
}

// Result is the outcome of a Plan call: either a compiled Graph ready
// for the Executor, or (PlanOnly) a textual high-level plan.
type Result struct {
	Graph    *graph.Graph
	PlanOnly bool
	PlanText string
}

// Plan implements the three-way dispatch of §4.4: workflow_url loads a
// graph from disk and skips planning; high_level_plan asks the LLM for
// a textual plan only; otherwise a full dynamic plan is requested,
// parsed, defaulted, and validated into a graph.Graph.
func (p *Planner) Plan(ctx context.Context, query string, metadata map[string]json.RawMessage) (*Result, error) {
	if raw, ok := metadata["workflow_url"]; ok {
		var path string
		if err := json.Unmarshal(raw, &path); err != nil {
			return nil, &PlanValidationError{Reason: "workflow_url metadata is not a string"}
		}
		g, err := p.LoadWorkflowFile(path)
		if err != nil {
			return nil, err
		}
		return &Result{Graph: g}, nil
	}

	if raw, ok := metadata["high_level_plan"]; ok {
		var highLevel bool
		_ = json.Unmarshal(raw, &highLevel)
		if highLevel {
			text, err := p.planHighLevel(ctx, query)
			if err != nil {
				return nil, err
			}
			return &Result{PlanOnly: true, PlanText: text}, nil
		}
	}

	g, err := p.planDynamic(ctx, query)
	if err != nil {
		return nil, err
	}
	return &Result{Graph: g}, nil
}

// LoadWorkflowFile loads a WorkflowPlanInput from path and validates it
// into a graph.Graph, applying the same capability checks a freshly
// planned graph receives.
func (p *Planner) LoadWorkflowFile(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var input WorkflowPlanInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, &PlanParseError{Reason: err.Error()}
	}
	return Validate(&input, p.capabilities())
}

func (p *Planner) planHighLevel(ctx context.Context, query string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: highLevelSystemPrompt},
		{Role: llm.RoleUser, Content: query},
	}
	resp, err := p.LLM.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("high-level plan chat completion: %w", err)
	}
	return resp.Message.Content, nil
}

func (p *Planner) planDynamic(ctx context.Context, query string) (*graph.Graph, error) {
	capabilitiesText := ""
	if p.Registry != nil {
		capabilitiesText = p.Registry.DescribeCapabilities()
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: dynamicSystemPrompt(capabilitiesText)},
		{Role: llm.RoleUser, Content: query},
	}
	resp, err := p.LLM.Chat(ctx, messages, nil)
	if err != nil {
		return nil, fmt.Errorf("dynamic plan chat completion: %w", err)
	}

	input, err := ParsePlanResponse(resp.Message.Content)
	if err != nil {
		return nil, err
	}

	ApplyFallbackDefaults(input)

	return Validate(input, p.capabilities())
}

func (p *Planner) capabilities() capabilities {
	if p.Registry == nil {
		return capabilitiesFrom(nil, nil)
	}
	return capabilitiesFrom(
		func(skill string) bool { _, ok := p.Registry.AgentBySkill(skill); return ok },
		func(id string) bool { _, ok := p.Registry.Tool(id); return ok },
	)
}

const highLevelSystemPrompt = `You are a planning assistant. Given the user's request, produce a concise, ` +
	`numbered high-level plan in plain text. Do not execute anything; only describe the steps.`

func dynamicSystemPrompt(capabilities string) string {
	return "You are a workflow planner. Given the user's request and the following available " +
		"capabilities, respond with a single JSON object of the form " +
		`{"plan_name": "...", "activities": [...]}` +
		" where each activity has activity_type, id, description, agent_config/tool_config/task_config, " +
		"dependencies, and expected_outcome. Capabilities:\n" + capabilities
}
