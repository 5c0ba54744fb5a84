package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// snapshot is the immutable value a Registry's atomic pointer holds.
// Refresh publishes a new snapshot; readers never observe a half-built one.
type snapshot struct {
	agents map[string]AgentDefinition
	tools  map[string]ToolDefinition
	tasks  map[string]TaskDefinition
}

// Registry is the shared capability catalog described in §4.2. Agents are
// refreshed from Discovery; tools and tasks are registered once at
// process startup and only change on explicit re-registration.
type Registry struct {
	ptr atomic.Pointer[snapshot]

	// defaultAgentID is the operator-configured fallback used when an
	// agent dispatch names neither an id nor a skill that resolves
	// (§4.5's "else the default agent if any"). Empty means none
	// configured. Set once at startup via SetDefaultAgentID, before the
	// Registry is shared with concurrent callers.
	defaultAgentID string
}

// SetDefaultAgentID configures the fallback agent id consulted by
// DefaultAgent. Intended to be called once during composition, not
// concurrently with lookups.
func (r *Registry) SetDefaultAgentID(id string) {
	r.defaultAgentID = id
}

// DefaultAgent returns the configured default agent, if one is set and
// still present in the current snapshot.
func (r *Registry) DefaultAgent() (AgentDefinition, bool) {
	if r.defaultAgentID == "" {
		return AgentDefinition{}, false
	}
	return r.Agent(r.defaultAgentID)
}

// New returns an empty Registry.
func New() *Registry {
	r := &Registry{}
	r.ptr.Store(&snapshot{
		agents: map[string]AgentDefinition{},
		tools:  map[string]ToolDefinition{},
		tasks:  map[string]TaskDefinition{},
	})
	return r
}

func (r *Registry) current() *snapshot {
	return r.ptr.Load()
}

// Agent looks up an agent definition by id.
func (r *Registry) Agent(id string) (AgentDefinition, bool) {
	a, ok := r.current().agents[id]
	return a, ok
}

// AgentBySkill returns the first registered agent advertising skill,
// exact match only (see Open Question decision in DESIGN.md). Callers
// needing the "else the default agent" fallback should try DefaultAgent
// when this returns false.
func (r *Registry) AgentBySkill(skill string) (AgentDefinition, bool) {
	snap := r.current()
	ids := make([]string, 0, len(snap.agents))
	for id := range snap.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids) // deterministic pick when multiple agents share a skill
	for _, id := range ids {
		if snap.agents[id].HasSkill(skill) {
			return snap.agents[id], true
		}
	}
	return AgentDefinition{}, false
}

// Tool looks up a tool definition by id.
func (r *Registry) Tool(id string) (ToolDefinition, bool) {
	t, ok := r.current().tools[id]
	return t, ok
}

// Task looks up a task definition by id.
func (r *Registry) Task(id string) (TaskDefinition, bool) {
	t, ok := r.current().tasks[id]
	return t, ok
}

// RegisterTool adds or replaces a tool definition. Tools are registered by
// the process at startup, not by Discovery.
func (r *Registry) RegisterTool(t ToolDefinition) {
	snap := r.current()
	next := &snapshot{agents: snap.agents, tools: cloneTools(snap.tools), tasks: snap.tasks}
	next.tools[t.ID] = t
	r.ptr.Store(next)
}

// RegisterTask adds or replaces a task definition.
func (r *Registry) RegisterTask(t TaskDefinition) {
	snap := r.current()
	next := &snapshot{agents: snap.agents, tools: snap.tools, tasks: cloneTasks(snap.tasks)}
	next.tasks[t.ID] = t
	r.ptr.Store(next)
}

// ReplaceAgents atomically swaps the agent set. Used by Refresh and
// directly by tests; the rest of the snapshot is shared, not copied,
// since only the agent map changes on a Discovery refresh.
func (r *Registry) ReplaceAgents(agents map[string]AgentDefinition) {
	snap := r.current()
	r.ptr.Store(&snapshot{agents: agents, tools: snap.tools, tasks: snap.tasks})
}

func cloneTools(in map[string]ToolDefinition) map[string]ToolDefinition {
	out := make(map[string]ToolDefinition, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTasks(in map[string]TaskDefinition) map[string]TaskDefinition {
	out := make(map[string]TaskDefinition, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// DescribeCapabilities formats every known agent, tool, and task into a
// prompt-ready summary for the Planner. It never fails; it reflects
// whatever the Registry holds at the moment of the call.
func (r *Registry) DescribeCapabilities() string {
	snap := r.current()
	var b strings.Builder

	agentIDs := sortedKeysAgents(snap.agents)
	b.WriteString("Agents:\n")
	for _, id := range agentIDs {
		a := snap.agents[id]
		fmt.Fprintf(&b, "- id=%s name=%s skills=%s description=%s\n", a.ID, a.Name, describeSkills(a.Skills), a.Description)
	}

	toolIDs := sortedKeysTools(snap.tools)
	b.WriteString("Tools:\n")
	for _, id := range toolIDs {
		t := snap.tools[id]
		fmt.Fprintf(&b, "- id=%s name=%s description=%s input_schema=%s\n", t.ID, t.Name, t.Description, summarizeSchema(t.InputSchema))
	}

	taskIDs := sortedKeysTasks(snap.tasks)
	b.WriteString("Tasks:\n")
	for _, id := range taskIDs {
		t := snap.tasks[id]
		fmt.Fprintf(&b, "- id=%s name=%s description=%s\n", t.ID, t.Name, t.Description)
	}

	return b.String()
}

// describeSkills formats an agent's skills as "name(description), ...",
// so the Planner prompt carries the per-skill description §3 specifies,
// not just the bare name.
func describeSkills(skills []Skill) string {
	parts := make([]string, len(skills))
	for i, s := range skills {
		if s.Description == "" {
			parts[i] = s.Name
			continue
		}
		parts[i] = fmt.Sprintf("%s(%s)", s.Name, s.Description)
	}
	return strings.Join(parts, ",")
}

func summarizeSchema(schema []byte) string {
	if len(schema) == 0 {
		return "{}"
	}
	const max = 200
	if len(schema) > max {
		return string(schema[:max]) + "..."
	}
	return string(schema)
}

func sortedKeysAgents(m map[string]AgentDefinition) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysTools(m map[string]ToolDefinition) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysTasks(m map[string]TaskDefinition) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
