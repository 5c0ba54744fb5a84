// Package server provides the public entry point for initializing the
// orchestrator process: the Capability Registry, the three invokers,
// the Planner, the Executor, the A2A boundary adapter, and the HTTP
// router that exposes it.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/meshwork/orchestrator/internal/a2a"
	"github.com/meshwork/orchestrator/internal/api"
	"github.com/meshwork/orchestrator/internal/config"
	"github.com/meshwork/orchestrator/internal/invoke"
	"github.com/meshwork/orchestrator/internal/llm"
	"github.com/meshwork/orchestrator/internal/mcp"
	"github.com/meshwork/orchestrator/internal/plan"
	"github.com/meshwork/orchestrator/internal/registry"
	"github.com/meshwork/orchestrator/internal/telemetry"
)

// backgroundRefreshInterval is how often the Registry re-syncs its agent
// set from Discovery, independent of the manual /internal/registry/refresh
// trigger (§10).
const backgroundRefreshInterval = 30 * time.Second

// selfAgentID is the id this process registers itself under, so other
// agents in the mesh can reach it through the A2A boundary adapter.
const selfAgentID = "orchestrator"

// Server holds the fully wired orchestrator process.
type Server struct {
	Handler  http.Handler
	Port     int
	Registry *registry.Registry
	Planner  *plan.Planner
	Executor *plan.Executor

	cancelRefresh context.CancelFunc
	shutdownFunc  func(context.Context) error
}

// New loads configuration from the environment and builds a ready Server.
func New(ctx context.Context) (*Server, error) {
	cfg := config.Load()

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	reg := registry.New()
	if cfg.DefaultAgentID != "" {
		reg.SetDefaultAgentID(cfg.DefaultAgentID)
	}
	discovery := registry.NewDiscoveryClient(cfg.Discovery.URL)

	a2aTimeout := time.Duration(cfg.Executor.A2ACallTimeoutSeconds) * time.Second
	dial := dialer(a2aTimeout)

	self := registry.AgentDefinition{
		ID:          selfAgentID,
		Name:        "orchestrator",
		Description: "Plans and executes multi-step workflows across discovered agents and tools.",
		Endpoint:    fmt.Sprintf("http://localhost:%d", cfg.Port),
		Skills:      []registry.Skill{{Name: "plan_and_execute", Description: "Plans and executes a multi-step workflow from a natural-language request."}},
	}
	go func() {
		if err := discovery.Register(ctx, self); err != nil {
			log.Warn().Err(err).Msg("discovery registration did not complete; continuing unregistered")
		}
	}()

	mcpClient := mcp.NewClient(cfg.MCP.ServerURL, cfg.MCP.APIKey)

	plannerLLM := llm.NewClient("", "gpt-4o-mini", cfg.LLM.PlannerAPIKey)
	loopLLM := llm.NewClient("", "gpt-4o-mini", cfg.LLM.MCPAPIKey)
	agentLoop := mcp.NewLoop(loopLLM, mcpClient)

	agentInvoker := invoke.NewA2AAgentInvoker(reg, a2aTimeout)
	toolInvoker := invoke.NewMcpToolInvoker(mcpClient)
	taskInvoker := invoke.NewInProcessTaskInvoker()
	registerBuiltinTasks(taskInvoker, agentLoop, cfg.Executor.DefaultMaxLoops)

	planner := plan.NewPlanner(plannerLLM, reg)
	executor := &plan.Executor{Agents: agentInvoker, Tools: toolInvoker, Tasks: taskInvoker}
	adapter := a2a.NewAdapter(planner, executor)

	router := api.NewRouter(cfg, api.Deps{
		A2A:     api.NewA2AHandler(adapter),
		Refresh: api.NewRefreshHandler(reg, discovery, dial),
	})

	refreshCtx, cancelRefresh := context.WithCancel(context.Background())
	go runBackgroundRefresh(refreshCtx, reg, discovery, dial)

	return &Server{
		Handler:       router,
		Port:          cfg.Port,
		Registry:      reg,
		Planner:       planner,
		Executor:      executor,
		cancelRefresh: cancelRefresh,
		shutdownFunc:  shutdown,
	}, nil
}

// Shutdown stops the background refresh loop and flushes telemetry.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancelRefresh != nil {
		s.cancelRefresh()
	}
	if s.shutdownFunc != nil {
		return s.shutdownFunc(ctx)
	}
	return nil
}

// registerBuiltinTasks wires the MCP Agent Loop in as an in-process task
// so a plan's direct_task_execution activities can drive a bounded
// LLM-tool loop as one step of a larger graph, rather than only being
// reachable outside the Executor.
func registerBuiltinTasks(tasks *invoke.InProcessTaskInvoker, loop *mcp.Loop, defaultMaxLoops int) {
	tasks.Register("llm_tool_loop", func(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
		var in struct {
			SystemPrompt string `json:"system_prompt"`
			Message      string `json:"message"`
			MaxLoops     int    `json:"max_loops"`
		}
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, fmt.Errorf("decode llm_tool_loop params: %w", err)
		}
		maxLoops := in.MaxLoops
		if maxLoops <= 0 {
			maxLoops = defaultMaxLoops
		}
		reply, err := loop.Run(ctx, in.SystemPrompt, in.Message, maxLoops)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]string{"reply": reply})
	})
}

// dialer returns a Registry.Dialer performing a lightweight reachability
// check against a discovered agent's endpoint before it is admitted into
// the live snapshot (§4.2). It does not attempt a full A2A handshake;
// the pooled a2a.Client used for real dispatch is created lazily by
// A2AAgentInvoker on first use.
func dialer(timeout time.Duration) registry.Dialer {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, agent registry.AgentDefinition) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, agent.Endpoint+"/healthz", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("agent %q unhealthy: status %d", agent.ID, resp.StatusCode)
		}
		return nil
	}
}

func runBackgroundRefresh(ctx context.Context, reg *registry.Registry, discovery *registry.DiscoveryClient, dial registry.Dialer) {
	ticker := time.NewTicker(backgroundRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reg.Refresh(ctx, discovery, dial); err != nil {
				log.Warn().Err(err).Msg("background registry refresh failed")
			}
		}
	}
}
