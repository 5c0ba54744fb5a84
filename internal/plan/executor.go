package plan

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/meshwork/orchestrator/internal/graph"
	"github.com/meshwork/orchestrator/internal/invoke"
)

var tracer = otel.Tracer("orchestrator")

// ExecutionResult is the outcome of running a Graph to completion.
type ExecutionResult struct {
	Success          bool
	Output           json.RawMessage
	FailedActivityID string
	Err              error
}

// Executor walks a graph.Graph's ready-set round by round, dispatching
// each activity to the invoker matching its Kind (§4.5). It mirrors the
// teacher's executeAsync ready-set-scan-plus-WaitGroup shape, but
// diverges from it in two ways recorded in DESIGN.md: the whole run is
// aborted on the first activity failure (the teacher continues
// executing unaffected branches), and an unrecognized condition
// operator is a hard failure rather than a default-true pass.
type Executor struct {
	Agents invoke.AgentInvoker
	Tools  invoke.ToolInvoker
	Tasks  invoke.TaskInvoker
}

type dispatchResult struct {
	id     string
	output json.RawMessage
	err    error
}

// Execute runs g to completion or to its first failure. It returns a
// non-nil error only for executor-internal faults (deadlock) and when ctx
// is canceled or expires before the run is decided; activity
// failures are reported through ExecutionResult instead, so a caller
// can distinguish "the plan failed" from "the executor is broken".
func (e *Executor) Execute(ctx context.Context, g *graph.Graph) (*ExecutionResult, error) {
	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("graph.id", g.ID),
		attribute.Int("graph.activity_count", len(g.Order)),
	))
	defer span.End()

	result, err := e.execute(ctx, g)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if !result.Success {
		span.SetStatus(codes.Error, "plan run failed")
		span.SetAttributes(attribute.String("graph.failed_activity_id", result.FailedActivityID))
	}
	return result, err
}

func (e *Executor) execute(ctx context.Context, g *graph.Graph) (*ExecutionResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completed := make(map[string]bool, len(g.Order))
	skipped := make(map[string]bool, len(g.Order))
	outputs := make(map[string]json.RawMessage, len(g.Order))

	for {
		if err := runCtx.Err(); err != nil {
			return nil, err
		}

		ready, newlySkipped, err := nextRound(g, completed, skipped, outputs)
		if err != nil {
			return &ExecutionResult{Success: false, Err: err}, nil
		}

		if len(ready) == 0 {
			if len(newlySkipped) == 0 {
				if allDecided(g, completed, skipped) {
					return finalResult(g, completed, outputs), nil
				}
				return nil, &ExecutorInternalError{Reason: "no activity ready but graph not fully decided (schedule deadlock)"}
			}
			for _, id := range newlySkipped {
				skipped[id] = true
			}
			continue
		}
		for _, id := range newlySkipped {
			skipped[id] = true
		}

		results := dispatchRound(runCtx, e, g, ready, outputs)

		failed := false
		var failedID string
		var failErr error
		for _, r := range results {
			if r.err != nil {
				failed = true
				failedID = r.id
				failErr = r.err
				continue
			}
			completed[r.id] = true
			outputs[r.id] = r.output
		}

		if failed {
			cancel()
			return &ExecutionResult{
				Success:          false,
				FailedActivityID: failedID,
				Err:              fmt.Errorf("%s: %w", failedID, failErr),
			}, nil
		}
	}
}

// nextRound scans every not-yet-decided activity. It returns the ids
// ready to dispatch this round, and the ids that become skipped this
// round because every one of their incoming edges evaluated false or
// propagated a skip from an upstream activity (§4.5 step 4; boundary
// behavior: an activity whose condition is false on every incoming
// edge is not executed, and that propagates to its own dependents).
//
// An activity that is about to be skipped this way, and that names a
// DefaultNext, forces that activity into this round's ready set
// instead of waiting for its own dependency scan — the graph analogue
// of the reference engine's evaluateBranches falling back to a named
// next step when no branch condition matched.
func nextRound(g *graph.Graph, completed, skipped map[string]bool, outputs map[string]json.RawMessage) (ready, newlySkipped []string, err error) {
	readySet := make(map[string]bool, len(g.Order))

	addReady := func(id string) {
		if !readySet[id] {
			ready = append(ready, id)
			readySet[id] = true
		}
	}

	for _, id := range g.Order {
		if completed[id] || skipped[id] || readySet[id] {
			continue
		}
		a := g.Activities[id]

		allSourcesDecided := true
		for _, dep := range a.DependsOn {
			if !completed[dep.ActivityID] && !skipped[dep.ActivityID] {
				allSourcesDecided = false
				break
			}
		}
		if !allSourcesDecided {
			continue
		}

		if len(a.DependsOn) == 0 {
			addReady(id)
			continue
		}

		anySatisfied := false
		for _, dep := range a.DependsOn {
			if skipped[dep.ActivityID] {
				continue
			}
			ok, evalErr := graph.EvaluateCondition(dep.Condition, outputs[dep.ActivityID])
			if evalErr != nil {
				return nil, nil, evalErr
			}
			if ok {
				anySatisfied = true
			}
		}

		if anySatisfied {
			addReady(id)
			continue
		}

		newlySkipped = append(newlySkipped, id)
		if a.DefaultNext != "" {
			if target, ok := g.Get(a.DefaultNext); ok && !completed[target.ID] && !skipped[target.ID] {
				addReady(target.ID)
			}
		}
	}
	return ready, newlySkipped, nil
}

func allDecided(g *graph.Graph, completed, skipped map[string]bool) bool {
	for _, id := range g.Order {
		if !completed[id] && !skipped[id] {
			return false
		}
	}
	return true
}

func dispatchRound(ctx context.Context, e *Executor, g *graph.Graph, ready []string, outputs map[string]json.RawMessage) []dispatchResult {
	var wg sync.WaitGroup
	resultsCh := make(chan dispatchResult, len(ready))

	for _, id := range ready {
		a := g.Activities[id]
		wg.Add(1)
		go func(a *graph.Activity) {
			defer wg.Done()
			output, err := e.dispatchWithRetry(ctx, a, outputs)
			resultsCh <- dispatchResult{id: a.ID, output: output, err: err}
		}(a)
	}

	wg.Wait()
	close(resultsCh)

	results := make([]dispatchResult, 0, len(ready))
	for r := range resultsCh {
		results = append(results, r)
	}
	return results
}

// dispatchWithRetry wraps dispatch with the reference engine's retry
// policy (§7): up to a.MaxRetries additional attempts after a failure,
// with exponential backoff (1s, 2s, 4s, ...) between them. A context
// cancellation during the backoff wait aborts the retry immediately.
func (e *Executor) dispatchWithRetry(ctx context.Context, a *graph.Activity, outputs map[string]json.RawMessage) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= a.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<(attempt-1)) * time.Second
			log.Info().Str("activity_id", a.ID).Int("attempt", attempt+1).Dur("delay", delay).Msg("retrying activity")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		output, err := e.dispatch(ctx, a, outputs)
		if err == nil {
			return output, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (e *Executor) dispatch(ctx context.Context, a *graph.Activity, outputs map[string]json.RawMessage) (json.RawMessage, error) {
	input, err := graph.Substitute(a.Input, outputs)
	if err != nil {
		return nil, &SubstitutionError{ActivityID: a.ID, Err: err}
	}

	log.Debug().Str("activity_id", a.ID).Str("kind", string(a.Kind)).Msg("dispatching activity")

	switch a.Kind {
	case graph.ActivityAgent:
		if e.Agents == nil {
			return nil, &ExecutorInternalError{Reason: fmt.Sprintf("activity %q is an agent activity but no AgentInvoker is configured", a.ID)}
		}
		return e.Agents.Interact(ctx, a.Ref, string(input), a.Skill)
	case graph.ActivityTool:
		if e.Tools == nil {
			return nil, &ExecutorInternalError{Reason: fmt.Sprintf("activity %q is a tool activity but no ToolInvoker is configured", a.ID)}
		}
		return e.Tools.Invoke(ctx, a.Ref, input)
	case graph.ActivityTask:
		if e.Tasks == nil {
			return nil, &ExecutorInternalError{Reason: fmt.Sprintf("activity %q is a task activity but no TaskInvoker is configured", a.ID)}
		}
		return e.Tasks.Invoke(ctx, a.Ref, input)
	default:
		return nil, &ExecutorInternalError{Reason: fmt.Sprintf("activity %q has unknown kind %q", a.ID, a.Kind)}
	}
}

// finalResult aggregates the outputs of terminal activities — those
// with no dependents — into the run's overall result. A single
// terminal activity's output is returned as-is; more than one is
// aggregated into an id-keyed object so no branch's output is lost.
func finalResult(g *graph.Graph, completed map[string]bool, outputs map[string]json.RawMessage) *ExecutionResult {
	hasDependent := make(map[string]bool, len(g.Order))
	for _, id := range g.Order {
		for _, dep := range g.Activities[id].DependsOn {
			hasDependent[dep.ActivityID] = true
		}
	}

	var terminal []string
	for _, id := range g.Order {
		if completed[id] && !hasDependent[id] {
			terminal = append(terminal, id)
		}
	}

	switch len(terminal) {
	case 0:
		return &ExecutionResult{Success: true, Output: json.RawMessage(`{}`)}
	case 1:
		return &ExecutionResult{Success: true, Output: outputs[terminal[0]]}
	default:
		agg := make(map[string]json.RawMessage, len(terminal))
		for _, id := range terminal {
			agg[id] = outputs[id]
		}
		encoded, err := json.Marshal(agg)
		if err != nil {
			return &ExecutionResult{Success: false, Err: fmt.Errorf("aggregating terminal outputs: %w", err)}
		}
		return &ExecutionResult{Success: true, Output: encoded}
	}
}
