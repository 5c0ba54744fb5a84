package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork/orchestrator/internal/graph"
)

type fakeTaskInvoker struct {
	mu         sync.Mutex
	calls      []string
	outputs    map[string]json.RawMessage
	errs       map[string]error
	failFirstN map[string]int
}

func newFakeTaskInvoker() *fakeTaskInvoker {
	return &fakeTaskInvoker{outputs: map[string]json.RawMessage{}, errs: map[string]error{}, failFirstN: map[string]int{}}
}

func (f *fakeTaskInvoker) Invoke(_ context.Context, taskID string, params json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, taskID)
	if n := f.failFirstN[taskID]; n > 0 {
		f.failFirstN[taskID] = n - 1
		f.mu.Unlock()
		return nil, fmt.Errorf("transient failure")
	}
	f.mu.Unlock()

	if err, ok := f.errs[taskID]; ok {
		return nil, err
	}
	if out, ok := f.outputs[taskID]; ok {
		return out, nil
	}
	return params, nil
}

func TestExecutor_TrivialSingleActivity(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "step1", Kind: graph.ActivityTask, Ref: "greet", Input: json.RawMessage(`{"name":"ada"}`)},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.outputs["greet"] = json.RawMessage(`{"greeting":"hello ada"}`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.JSONEq(t, `{"greeting":"hello ada"}`, string(result.Output))
}

func TestExecutor_DataFlowSubstitution(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "fetch", Kind: graph.ActivityTask, Ref: "fetch", Input: json.RawMessage(`{}`)},
		{
			ID:        "summarize",
			Kind:      graph.ActivityTask,
			Ref:       "summarize",
			Input:     json.RawMessage(`{"value":"{{fetch.count}}"}`),
			DependsOn: []graph.Dependency{{ActivityID: "fetch"}},
		},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.outputs["fetch"] = json.RawMessage(`{"count":42}`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.JSONEq(t, `{"value":42}`, string(result.Output))
}

func TestExecutor_ConditionalBranchSkipsUnsatisfiedPath(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "classify", Kind: graph.ActivityTask, Ref: "classify", Input: json.RawMessage(`{}`)},
		{ID: "path_a", Kind: graph.ActivityTask, Ref: "path_a", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "classify", Condition: `result == "a"`}}},
		{ID: "path_b", Kind: graph.ActivityTask, Ref: "path_b", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "classify", Condition: `result == "b"`}}},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.outputs["classify"] = json.RawMessage(`"a"`)
	tasks.outputs["path_a"] = json.RawMessage(`{"taken":true}`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.JSONEq(t, `{"taken":true}`, string(result.Output))

	for _, call := range tasks.calls {
		assert.NotEqual(t, "path_b", call, "skipped branch must not be dispatched")
	}
}

func TestExecutor_ParallelFanOutThenJoin(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "start", Kind: graph.ActivityTask, Ref: "start", Input: json.RawMessage(`{}`)},
		{ID: "branch_a", Kind: graph.ActivityTask, Ref: "branch_a", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "start"}}},
		{ID: "branch_b", Kind: graph.ActivityTask, Ref: "branch_b", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "start"}}},
		{ID: "join", Kind: graph.ActivityTask, Ref: "join",
			Input: json.RawMessage(`{"a":"{{branch_a.v}}","b":"{{branch_b.v}}"}`),
			DependsOn: []graph.Dependency{
				{ActivityID: "branch_a"},
				{ActivityID: "branch_b"},
			}},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.outputs["branch_a"] = json.RawMessage(`{"v":1}`)
	tasks.outputs["branch_b"] = json.RawMessage(`{"v":2}`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(result.Output))
}

func TestExecutor_AbortsWholeRunOnFirstFailure(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "will_fail", Kind: graph.ActivityTask, Ref: "will_fail", Input: json.RawMessage(`{}`)},
		{ID: "never_runs", Kind: graph.ActivityTask, Ref: "never_runs", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "will_fail"}}},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.errs["will_fail"] = fmt.Errorf("boom")

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Equal(t, "will_fail", result.FailedActivityID)

	for _, call := range tasks.calls {
		assert.NotEqual(t, "never_runs", call)
	}
}

func TestExecutor_RetriesFailedActivityUpToMaxRetries(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "flaky", Kind: graph.ActivityTask, Ref: "flaky", Input: json.RawMessage(`{}`), MaxRetries: 1},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.failFirstN["flaky"] = 1
	tasks.outputs["flaky"] = json.RawMessage(`{"ok":true}`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, result.Success, "one retry should recover from a single transient failure")
	assert.JSONEq(t, `{"ok":true}`, string(result.Output))
	assert.Len(t, tasks.calls, 2, "expected the initial attempt plus exactly one retry")
}

func TestExecutor_ExhaustsRetriesThenFailsRun(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "always_fails", Kind: graph.ActivityTask, Ref: "always_fails", Input: json.RawMessage(`{}`), MaxRetries: 1},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.errs["always_fails"] = fmt.Errorf("boom")

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Len(t, tasks.calls, 2, "expected the initial attempt plus exactly one retry before giving up")
}

func TestExecutor_DefaultNextRunsWhenConditionsAllFail(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "classify", Kind: graph.ActivityTask, Ref: "classify", Input: json.RawMessage(`{}`)},
		{ID: "path_a", Kind: graph.ActivityTask, Ref: "path_a", Input: json.RawMessage(`{}`),
			DependsOn:   []graph.Dependency{{ActivityID: "classify", Condition: `result == "a"`}},
			DefaultNext: "fallback"},
		// fallback's own edge never matches on its own; it only runs because
		// path_a's DefaultNext forces it into the ready set.
		{ID: "fallback", Kind: graph.ActivityTask, Ref: "fallback", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "classify", Condition: `result == "never"`}}},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.outputs["classify"] = json.RawMessage(`"c"`)
	tasks.outputs["fallback"] = json.RawMessage(`{"took":"fallback"}`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.True(t, result.Success)

	var sawFallback bool
	for _, call := range tasks.calls {
		assert.NotEqual(t, "path_a", call, "path_a's condition never matched, so it must not be dispatched")
		if call == "fallback" {
			sawFallback = true
		}
	}
	assert.True(t, sawFallback, "default_next target must run when every conditional dependency fails")
}

func TestExecutor_UnsupportedConditionOperatorFailsRun(t *testing.T) {
	g, err := graph.Build("p", []*graph.Activity{
		{ID: "a", Kind: graph.ActivityTask, Ref: "a", Input: json.RawMessage(`{}`)},
		{ID: "b", Kind: graph.ActivityTask, Ref: "b", Input: json.RawMessage(`{}`),
			DependsOn: []graph.Dependency{{ActivityID: "a", Condition: "result > 1"}}},
	})
	require.NoError(t, err)

	tasks := newFakeTaskInvoker()
	tasks.outputs["a"] = json.RawMessage(`2`)

	exec := &Executor{Tasks: tasks}
	result, err := exec.Execute(context.Background(), g)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Error(t, result.Err)
}
