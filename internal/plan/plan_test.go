package plan

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlanResponse_StripsThinkBlockAndFence(t *testing.T) {
	raw := "<think>the user wants a greeting</think>\n```json\n" +
		`{"plan_name":"greet","activities":[{"activity_type":"direct_tool_use","id":"a1","tool_config":{"tool_to_use":"greeter"}}]}` +
		"\n```"

	input, err := ParsePlanResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "greet", input.PlanName)
	require.Len(t, input.Activities, 1)
	assert.Equal(t, "a1", input.Activities[0].ID)
}

func TestParsePlanResponse_PlainJSONNoFence(t *testing.T) {
	raw := `{"plan_name":"p","activities":[]}`
	input, err := ParsePlanResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "p", input.PlanName)
}

func TestParsePlanResponse_InvalidJSONIsPlanParseError(t *testing.T) {
	_, err := ParsePlanResponse("not json at all {{{")
	require.Error(t, err)
	var parseErr *PlanParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestApplyFallbackDefaults_ChainsUnassignedActivityToPrevious(t *testing.T) {
	input := &WorkflowPlanInput{
		Activities: []ActivityInput{
			{ID: "a1", ActivityType: DirectToolUse, ToolConfig: &ToolConfigInput{ToolToUse: "weather"}},
			{ID: "a2", Description: "summarize the weather"},
		},
	}

	ApplyFallbackDefaults(input)

	a2 := input.Activities[1]
	assert.Equal(t, DirectTaskExecution, a2.ActivityType)
	require.NotNil(t, a2.TaskConfig)
	assert.Equal(t, "unassigned_task_2", a2.TaskConfig.TaskToUse)
	require.Len(t, a2.Dependencies, 1)
	assert.Equal(t, "a1", a2.Dependencies[0].Source)
}

func TestApplyFallbackDefaults_LeavesExplicitConfigUntouched(t *testing.T) {
	input := &WorkflowPlanInput{
		Activities: []ActivityInput{
			{ID: "a1", ActivityType: DelegationAgent, AgentConfig: &AgentConfigInput{SkillToUse: "greet"}},
		},
	}

	ApplyFallbackDefaults(input)

	assert.Equal(t, DelegationAgent, input.Activities[0].ActivityType)
	assert.Nil(t, input.Activities[0].TaskConfig)
}

func TestValidate_RejectsDependencyOnUnknownActivity(t *testing.T) {
	input := &WorkflowPlanInput{
		Activities: []ActivityInput{
			{
				ID:           "a1",
				ActivityType: DirectToolUse,
				ToolConfig:   &ToolConfigInput{ToolToUse: "weather"},
				Dependencies: []DependencyInput{{Source: "ghost"}},
			},
		},
	}

	_, err := Validate(input, capabilitiesFrom(nil, func(string) bool { return true }))
	require.Error(t, err)
	var valErr *PlanValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestValidate_RejectsUnknownTool(t *testing.T) {
	input := &WorkflowPlanInput{
		Activities: []ActivityInput{
			{ID: "a1", ActivityType: DirectToolUse, ToolConfig: &ToolConfigInput{ToolToUse: "nonexistent"}},
		},
	}

	_, err := Validate(input, capabilitiesFrom(nil, func(string) bool { return false }))
	require.Error(t, err)
}

func TestValidate_BuildsGraphForWellFormedPlan(t *testing.T) {
	input := &WorkflowPlanInput{
		PlanName: "fetch-and-summarize",
		Activities: []ActivityInput{
			{ID: "fetch", ActivityType: DirectToolUse, ToolConfig: &ToolConfigInput{ToolToUse: "weather", ToolParameters: json.RawMessage(`{}`)}},
			{
				ID:           "summarize",
				ActivityType: DelegationAgent,
				AgentConfig:  &AgentConfigInput{SkillToUse: "summarize"},
				Dependencies: []DependencyInput{{Source: "fetch"}},
			},
		},
	}

	g, err := Validate(input, capabilitiesFrom(
		func(skill string) bool { return skill == "summarize" },
		func(id string) bool { return id == "weather" },
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "summarize"}, g.Order)
}
