package graph

import "fmt"

// CycleError reports that the dependency edges induced by a set of
// Activities are not acyclic.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %v", e.Path)
}

// UnknownDependencyError reports that an Activity names a dependency id
// with no corresponding Activity in the same graph.
type UnknownDependencyError struct {
	ActivityID   string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("activity %q depends on unknown activity %q", e.ActivityID, e.DependencyID)
}

// Build assembles activities into a Graph, validating that every
// dependency id resolves to a declared activity and that the induced
// edge set is acyclic (invariant ii of §3).
func Build(id string, activities []*Activity) (*Graph, error) {
	g := NewGraph(id)
	for _, a := range activities {
		g.Add(a)
	}

	for _, a := range activities {
		for _, dep := range a.DependsOn {
			if _, ok := g.Get(dep.ActivityID); !ok {
				return nil, &UnknownDependencyError{ActivityID: a.ID, DependencyID: dep.ActivityID}
			}
		}
	}

	if cyclePath, ok := findCycle(g); ok {
		return nil, &CycleError{Path: cyclePath}
	}

	return g, nil
}

// findCycle runs a depth-first walk marking white/gray/black nodes,
// the standard way to detect a cycle in a directed graph.
func findCycle(g *Graph) ([]string, bool) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Order))
	var path []string

	var visit func(id string) ([]string, bool)
	visit = func(id string) ([]string, bool) {
		color[id] = gray
		path = append(path, id)

		a := g.Activities[id]
		for _, dep := range a.DependsOn {
			switch color[dep.ActivityID] {
			case white:
				if cyclePath, found := visit(dep.ActivityID); found {
					return cyclePath, true
				}
			case gray:
				return append(append([]string{}, path...), dep.ActivityID), true
			}
		}

		color[id] = black
		path = path[:len(path)-1]
		return nil, false
	}

	for _, id := range g.Order {
		if color[id] == white {
			if cyclePath, found := visit(id); found {
				return cyclePath, true
			}
		}
	}
	return nil, false
}

// Ready returns the ids of activities whose dependencies are all present
// in completed and which are not themselves in completed yet. Mirrors
// the teacher's executeAsync ready-set scan, generalized to DependsOn's
// richer (id, condition) dependency shape.
func (g *Graph) Ready(completed map[string]bool) []string {
	var ready []string
	for _, id := range g.Order {
		if completed[id] {
			continue
		}
		a := g.Activities[id]
		allMet := true
		for _, dep := range a.DependsOn {
			if !completed[dep.ActivityID] {
				allMet = false
				break
			}
		}
		if allMet {
			ready = append(ready, id)
		}
	}
	return ready
}
