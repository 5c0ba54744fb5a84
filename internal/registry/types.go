// Package registry maintains the in-memory catalog of agents, tools, and
// tasks that the Planner describes to the LLM and the Executor dispatches
// against, plus the Discovery client used to keep the agent set current.
package registry

import "encoding/json"

// Skill names one capability an agent advertises, with the description
// the Planner surfaces to the LLM alongside it (§3's
// `skills: [{name, description}]` wire format).
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AgentDefinition describes a discoverable remote agent: its skills and
// the endpoint an AgentInvoker dials to reach it.
type AgentDefinition struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Endpoint    string  `json:"endpoint"`
	Skills      []Skill `json:"skills"`
}

// ToolDefinition describes a tool exposed through the MCP runtime.
type ToolDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// TaskDefinition describes an in-process task closure.
type TaskDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HasSkill reports whether this agent declares the named skill, using
// exact match per the Open Question ruling in DESIGN.md.
func (a AgentDefinition) HasSkill(skill string) bool {
	for _, s := range a.Skills {
		if s.Name == skill {
			return true
		}
	}
	return false
}
