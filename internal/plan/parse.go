package plan

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// PlanParseError reports that the LLM's response could not be parsed
// into a WorkflowPlanInput (§7). It is surfaced to the user; the
// Planner does not retry.
type PlanParseError struct {
	Reason string
	Raw    string
}

func (e *PlanParseError) Error() string {
	return fmt.Sprintf("plan parse error: %s", e.Reason)
}

var (
	thinkBlockRegex  = regexp.MustCompile(`(?s)<think>.*?</think>`)
	markdownFenceRe  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// ParsePlanResponse strips a leading <think>...</think> preamble and any
// surrounding Markdown code fences, then deserializes the remainder into
// a WorkflowPlanInput (§4.4, step 1-2).
func ParsePlanResponse(raw string) (*WorkflowPlanInput, error) {
	cleaned := thinkBlockRegex.ReplaceAllString(raw, "")
	cleaned = strings.TrimSpace(cleaned)

	if m := markdownFenceRe.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}

	var input WorkflowPlanInput
	if err := json.Unmarshal([]byte(cleaned), &input); err != nil {
		return nil, &PlanParseError{Reason: err.Error(), Raw: raw}
	}
	return &input, nil
}
