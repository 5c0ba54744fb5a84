package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/meshwork/orchestrator/internal/a2a"
	"github.com/meshwork/orchestrator/internal/registry"
)

// AgentLookup is the subset of Registry's read surface A2AAgentInvoker
// needs, kept narrow so tests can supply a fake without a real Registry.
type AgentLookup interface {
	Agent(id string) (registry.AgentDefinition, bool)
	AgentBySkill(skill string) (registry.AgentDefinition, bool)
	DefaultAgent() (registry.AgentDefinition, bool)
}

// A2AAgentInvoker resolves an agent's endpoint from the Registry and
// sends it an A2A task message, per §4.3.
type A2AAgentInvoker struct {
	registry AgentLookup
	timeout  time.Duration

	clientsMu sync.Mutex
	clients   map[string]*a2a.Client // agent id -> pooled client
}

// NewA2AAgentInvoker returns an invoker resolving agents from lookup,
// dialing each with the given per-call timeout.
func NewA2AAgentInvoker(lookup AgentLookup, timeout time.Duration) *A2AAgentInvoker {
	return &A2AAgentInvoker{
		registry: lookup,
		timeout:  timeout,
		clients:  make(map[string]*a2a.Client),
	}
}

// Interact resolves the target agent by agentID, else by skill, else the
// default agent, sends message, and normalizes the reply to JSON (§4.3).
func (inv *A2AAgentInvoker) Interact(ctx context.Context, agentID, message, skill string) (json.RawMessage, error) {
	ctx, done := startSpan(ctx, "agent", firstNonEmpty(agentID, skill))
	out, err := inv.interact(ctx, agentID, message, skill)
	done(err)
	return out, err
}

func (inv *A2AAgentInvoker) interact(ctx context.Context, agentID, message, skill string) (json.RawMessage, error) {
	def, ok := inv.resolve(agentID, skill)
	if !ok {
		return nil, &Error{Kind: "agent", Target: agentID, Err: fmt.Errorf("no agent found for id=%q skill=%q", agentID, skill)}
	}

	client := inv.clientFor(def)

	callCtx, cancel := context.WithTimeout(ctx, inv.timeout)
	defer cancel()

	task, err := client.SendTaskMessage(callCtx, "", a2a.Message{
		Role:      a2a.RoleUser,
		Parts:     []a2a.Part{{Kind: a2a.TextPart, Text: message}},
		MessageID: def.ID,
	}, "")
	if err != nil {
		return nil, &Error{Kind: "agent", Target: def.ID, Err: err}
	}
	if task.Status.State == a2a.TaskFailed {
		return nil, &Error{Kind: "agent", Target: def.ID, Err: fmt.Errorf("agent task failed")}
	}

	text := ""
	if task.Status.Message != nil {
		text = task.Status.Message.Text()
	}
	return normalizeAgentReply(text), nil
}

// resolve implements the preference order from §4.5 step 3b: an explicit
// agent id if set and registered, else a skill match if set, else the
// configured default agent if any. A tier whose field is empty or does
// not resolve falls through to the next one.
func (inv *A2AAgentInvoker) resolve(agentID, skill string) (registry.AgentDefinition, bool) {
	if agentID != "" {
		if def, ok := inv.registry.Agent(agentID); ok {
			return def, true
		}
	}
	if skill != "" {
		if def, ok := inv.registry.AgentBySkill(skill); ok {
			return def, true
		}
	}
	return inv.registry.DefaultAgent()
}

func (inv *A2AAgentInvoker) clientFor(def registry.AgentDefinition) *a2a.Client {
	inv.clientsMu.Lock()
	defer inv.clientsMu.Unlock()

	if c, ok := inv.clients[def.ID]; ok {
		return c
	}
	c := a2a.NewClient(def.Endpoint, inv.timeout)
	inv.clients[def.ID] = c
	return c
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// normalizeAgentReply parses text as JSON if possible, otherwise wraps
// it as {"text_response": text} (§4.3).
func normalizeAgentReply(text string) json.RawMessage {
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return json.RawMessage(text)
	}
	wrapped, _ := json.Marshal(map[string]string{"text_response": text})
	return wrapped
}
