package plan

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meshwork/orchestrator/internal/graph"
)

// PlanValidationError reports that a parsed plan's activity references
// or dependency graph failed validation (§7). Surfaced to the user; the
// Planner does not retry.
type PlanValidationError struct {
	Reason string
}

func (e *PlanValidationError) Error() string {
	return fmt.Sprintf("plan validation error: %s", e.Reason)
}

// capabilities is the concrete lookup surface passed in from the
// composition root; kept as plain functions rather than an interface
// bound to *registry.Registry so this package has no import-cycle risk
// and tests can supply trivial closures.
type capabilities struct {
	hasSkill func(skill string) bool
	hasTool  func(id string) bool
}

// Validate implements §4.4 step 3: every skill_to_use must resolve to a
// known agent skill (else warn only); every tool_to_use must resolve to
// a known tool (else fail); every dependency.source must reference an
// earlier activity id; every dependency condition must use "==" or "!=";
// the induced edge set must be acyclic.
func Validate(input *WorkflowPlanInput, caps capabilities) (*graph.Graph, error) {
	seen := make(map[string]bool, len(input.Activities))

	var activities []*graph.Activity
	for i, a := range input.Activities {
		if a.ID == "" {
			return nil, &PlanValidationError{Reason: fmt.Sprintf("activity at index %d has no id", i)}
		}

		for _, dep := range a.Dependencies {
			if !seen[dep.Source] {
				return nil, &PlanValidationError{
					Reason: fmt.Sprintf("activity %q depends on %q, which is not an earlier activity", a.ID, dep.Source),
				}
			}
			if _, err := graph.EvaluateCondition(dep.Condition, nil); err != nil {
				return nil, &PlanValidationError{Reason: fmt.Sprintf("activity %q: %v", a.ID, err)}
			}
		}

		if a.ActivityType == DelegationAgent && a.AgentConfig != nil && a.AgentConfig.SkillToUse != "" {
			if caps.hasSkill != nil && !caps.hasSkill(a.AgentConfig.SkillToUse) {
				log.Warn().Str("activity_id", a.ID).Str("skill", a.AgentConfig.SkillToUse).Msg("skill_to_use does not resolve to a known agent skill")
			}
		}

		if a.ActivityType == DirectToolUse {
			toolID := ""
			if a.ToolConfig != nil {
				toolID = a.ToolConfig.ToolToUse
			}
			if toolID == "" {
				return nil, &PlanValidationError{Reason: fmt.Sprintf("activity %q is direct_tool_use with no tool_to_use", a.ID)}
			}
			if caps.hasTool != nil && !caps.hasTool(toolID) {
				return nil, &PlanValidationError{Reason: fmt.Sprintf("activity %q references unknown tool %q", a.ID, toolID)}
			}
		}

		activities = append(activities, toGraphActivity(a))
		seen[a.ID] = true
	}

	for _, a := range input.Activities {
		if a.DefaultNext != "" && !seen[a.DefaultNext] {
			return nil, &PlanValidationError{
				Reason: fmt.Sprintf("activity %q has default_next %q, which is not a known activity", a.ID, a.DefaultNext),
			}
		}
	}

	g, err := graph.Build(input.PlanName, activities)
	if err != nil {
		return nil, &PlanValidationError{Reason: err.Error()}
	}
	return g, nil
}

// capabilitiesFrom adapts a Registry-like lookup surface into the
// narrow capabilities struct Validate needs.
func capabilitiesFrom(hasSkill func(string) bool, hasTool func(string) bool) capabilities {
	return capabilities{hasSkill: hasSkill, hasTool: hasTool}
}

func toGraphActivity(a ActivityInput) *graph.Activity {
	ga := &graph.Activity{
		ID:          a.ID,
		MaxRetries:  a.MaxRetries,
		DefaultNext: a.DefaultNext,
	}

	for _, dep := range a.Dependencies {
		ga.DependsOn = append(ga.DependsOn, graph.Dependency{ActivityID: dep.Source, Condition: dep.Condition})
	}

	switch a.ActivityType {
	case DelegationAgent:
		ga.Kind = graph.ActivityAgent
		if a.AgentConfig != nil {
			ga.Skill = a.AgentConfig.SkillToUse
			ga.Ref = a.AgentConfig.AssignedAgentIDPreference
		}
		descJSON, _ := json.Marshal(a.Description)
		ga.Input = descJSON
	case DirectToolUse:
		ga.Kind = graph.ActivityTool
		if a.ToolConfig != nil {
			ga.Ref = a.ToolConfig.ToolToUse
			ga.Input = a.ToolConfig.ToolParameters
		}
	case DirectTaskExecution:
		ga.Kind = graph.ActivityTask
		if a.TaskConfig != nil {
			ga.Ref = a.TaskConfig.TaskToUse
			ga.Input = a.TaskConfig.TaskParameters
		}
	}

	if len(ga.Input) == 0 {
		ga.Input = []byte(`{}`)
	}

	return ga
}
