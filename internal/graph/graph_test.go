package graph_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork/orchestrator/internal/graph"
)

func TestBuild_DetectsCycle(t *testing.T) {
	a := &graph.Activity{ID: "a", DependsOn: []graph.Dependency{{ActivityID: "b"}}}
	b := &graph.Activity{ID: "b", DependsOn: []graph.Dependency{{ActivityID: "a"}}}

	_, err := graph.Build("plan-1", []*graph.Activity{a, b})
	require.Error(t, err)
	var cycleErr *graph.CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestBuild_UnknownDependency(t *testing.T) {
	a := &graph.Activity{ID: "a", DependsOn: []graph.Dependency{{ActivityID: "missing"}}}

	_, err := graph.Build("plan-1", []*graph.Activity{a})
	require.Error(t, err)
	var unknownErr *graph.UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
}

func TestGraph_Ready(t *testing.T) {
	a := &graph.Activity{ID: "fetch"}
	b := &graph.Activity{ID: "greet", DependsOn: []graph.Dependency{{ActivityID: "fetch"}}}

	g, err := graph.Build("plan-1", []*graph.Activity{a, b})
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch"}, g.Ready(map[string]bool{}))
	assert.Equal(t, []string{"greet"}, g.Ready(map[string]bool{"fetch": true}))
	assert.Empty(t, g.Ready(map[string]bool{"fetch": true, "greet": true}))
}

func TestSubstitute_ExactMatchPreservesType(t *testing.T) {
	completed := map[string]json.RawMessage{
		"fetch_customer": json.RawMessage(`{"name":"Company A","address":{"city":"Boston"},"age":12}`),
	}

	out, err := graph.Substitute(json.RawMessage(`"{{fetch_customer.age}}"`), completed)
	require.NoError(t, err)
	assert.JSONEq(t, "12", string(out))
}

func TestSubstitute_PartialMatchStringifies(t *testing.T) {
	completed := map[string]json.RawMessage{
		"fetch_customer": json.RawMessage(`{"name":"Company A","address":{"city":"Boston"}}`),
	}

	out, err := graph.Substitute(json.RawMessage(`"Hello {{fetch_customer.name}} from {{fetch_customer.address.city}}"`), completed)
	require.NoError(t, err)

	var got string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "Hello Company A from Boston", got)
}

func TestSubstitute_MissingDependencyFails(t *testing.T) {
	_, err := graph.Substitute(json.RawMessage(`"{{unknown.field}}"`), map[string]json.RawMessage{})
	require.Error(t, err)
	var missingErr *graph.MissingDependencyOutput
	require.ErrorAs(t, err, &missingErr)
}

func TestSubstitute_MissingPathYieldsEmptyString(t *testing.T) {
	completed := map[string]json.RawMessage{
		"fetch": json.RawMessage(`{"name":"Company A"}`),
	}

	out, err := graph.Substitute(json.RawMessage(`"{{fetch.nonexistent}}"`), completed)
	require.NoError(t, err)
	var got string
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "", got)
}

func TestEvaluateCondition(t *testing.T) {
	output := json.RawMessage(`"ok"`)

	ok, err := graph.EvaluateCondition(`result == "ok"`, output)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = graph.EvaluateCondition(`result != "ok"`, output)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = graph.EvaluateCondition("", output)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateCondition_UnsupportedOperator(t *testing.T) {
	_, err := graph.EvaluateCondition("result > 5", json.RawMessage(`5`))
	require.Error(t, err)
	var unsupported *graph.UnsupportedCondition
	require.ErrorAs(t, err, &unsupported)
}
