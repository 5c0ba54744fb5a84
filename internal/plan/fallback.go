package plan

import (
	"encoding/json"
	"fmt"
)

// ApplyFallbackDefaults implements §4.4's defaulting rule: an activity
// whose high-level suggestion lacks any explicit tool_config/
// agent_config/task_config still produces a constructible plan. It is
// defaulted to DirectTaskExecution with a generic, unassigned task
// placeholder, and chained to the immediately preceding activity —
// mirroring the reference planner's HierarchicalPlan-to-WorkflowPlanInput
// conversion (scenario 7).
func ApplyFallbackDefaults(input *WorkflowPlanInput) {
	var previousID string
	for i := range input.Activities {
		a := &input.Activities[i]

		if !hasExplicitConfig(a) {
			desc, _ := json.Marshal(a.Description)
			a.ActivityType = DirectTaskExecution
			a.TaskConfig = &TaskConfigInput{
				TaskToUse:      fmt.Sprintf("unassigned_task_%d", i+1),
				TaskParameters: desc,
			}
			if previousID != "" && !dependsOn(a, previousID) {
				a.Dependencies = append(a.Dependencies, DependencyInput{Source: previousID})
			}
		}

		previousID = a.ID
	}
}

func hasExplicitConfig(a *ActivityInput) bool {
	switch a.ActivityType {
	case DelegationAgent:
		return a.AgentConfig != nil
	case DirectToolUse:
		return a.ToolConfig != nil && a.ToolConfig.ToolToUse != ""
	case DirectTaskExecution:
		return a.TaskConfig != nil && a.TaskConfig.TaskToUse != ""
	default:
		return false
	}
}

func dependsOn(a *ActivityInput, source string) bool {
	for _, d := range a.Dependencies {
		if d.Source == source {
			return true
		}
	}
	return false
}
