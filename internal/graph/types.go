// Package graph models the activity dependency graph that a Plan is
// compiled into and that the Executor walks at run time.
package graph

import "encoding/json"

// ActivityKind selects which Invoker dispatches an Activity.
type ActivityKind string

const (
	ActivityAgent ActivityKind = "agent"
	ActivityTool  ActivityKind = "tool"
	ActivityTask  ActivityKind = "task"
)

// Dependency names an upstream Activity this Activity's input may
// reference via a "{{activity_id.dot.path}}" expression, and carries
// an optional condition gating whether the edge should be followed.
type Dependency struct {
	ActivityID string
	Condition  string
}

// Activity is one node of the graph: a unit of work dispatched to an
// agent, a tool, or an in-process task.
type Activity struct {
	ID        string
	Kind      ActivityKind
	Ref       string          // agent id, tool name, or task name
	Skill     string          // optional skill hint for agent dispatch
	Input     json.RawMessage // raw input payload, possibly containing reference expressions
	DependsOn []Dependency

	// MaxRetries bounds how many additional dispatch attempts the
	// Executor makes after this activity fails, with exponential
	// backoff between attempts. Zero means no retry.
	MaxRetries int

	// DefaultNext names the activity the Executor forces into the
	// ready set, this round, when every one of this activity's
	// conditional dependencies evaluates false — see nextRound in
	// internal/plan/executor.go.
	DefaultNext string
}

// Graph is the compiled, directed form of a Plan: a flat set of
// Activities plus the dependency edges recorded on each one.
type Graph struct {
	ID         string
	Activities map[string]*Activity
	Order      []string // original declaration order, for deterministic iteration
}

// NewGraph returns an empty Graph ready to have Activities added to it.
func NewGraph(id string) *Graph {
	return &Graph{
		ID:         id,
		Activities: make(map[string]*Activity),
	}
}

// Add registers an Activity, preserving declaration order.
func (g *Graph) Add(a *Activity) {
	if _, exists := g.Activities[a.ID]; !exists {
		g.Order = append(g.Order, a.ID)
	}
	g.Activities[a.ID] = a
}

// Get looks up an Activity by id.
func (g *Graph) Get(id string) (*Activity, bool) {
	a, ok := g.Activities[id]
	return a, ok
}
