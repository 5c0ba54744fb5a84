package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DiscoveryError reports that the Discovery service was unreachable or
// returned a malformed response. It is non-fatal: callers log it and
// continue without registration (§7).
type DiscoveryError struct {
	Op  string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovery %s: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// DiscoveryClient talks to the Discovery HTTP API (§6).
type DiscoveryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDiscoveryClient returns a client rooted at baseURL.
func NewDiscoveryClient(baseURL string) *DiscoveryClient {
	return &DiscoveryClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Register registers self with Discovery, retrying with exponential
// back-off (2 attempts, base 1s, factor 2) before giving up (§7, §8
// scenario 8). A failure after retries is logged and returned as a
// DiscoveryError; it never blocks startup.
func (c *DiscoveryClient) Register(ctx context.Context, self AgentDefinition) error {
	body, err := json.Marshal(self)
	if err != nil {
		return &DiscoveryError{Op: "register", Err: err}
	}

	policy := backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(1*time.Second),
			backoff.WithMultiplier(2),
		),
		1, // 1 retry after the first attempt == 2 attempts total
	)
	policy = backoff.WithContext(policy, ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := c.post(ctx, "/register", body)
		if err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("discovery registration attempt failed")
		}
		return err
	}

	if err := backoff.Retry(op, policy); err != nil {
		return &DiscoveryError{Op: "register", Err: err}
	}
	return nil
}

// Deregister removes self from Discovery. Best-effort, no retry.
func (c *DiscoveryClient) Deregister(ctx context.Context, self AgentDefinition) error {
	body, err := json.Marshal(self)
	if err != nil {
		return &DiscoveryError{Op: "deregister", Err: err}
	}
	if err := c.post(ctx, "/deregister", body); err != nil {
		return &DiscoveryError{Op: "deregister", Err: err}
	}
	return nil
}

// ListAgents returns the full set of registered agents.
func (c *DiscoveryClient) ListAgents(ctx context.Context) ([]AgentDefinition, error) {
	var out []AgentDefinition
	if err := c.get(ctx, "/agents", &out); err != nil {
		return nil, &DiscoveryError{Op: "list_agents", Err: err}
	}
	return out, nil
}

// SearchBySkill returns agents advertising the named skill.
func (c *DiscoveryClient) SearchBySkill(ctx context.Context, skill string) ([]AgentDefinition, error) {
	var out []AgentDefinition
	path := "/agents/search?skill=" + skill
	if err := c.get(ctx, path, &out); err != nil {
		return nil, &DiscoveryError{Op: "search_by_skill", Err: err}
	}
	return out, nil
}

func (c *DiscoveryClient) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *DiscoveryClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Dialer verifies (or establishes) connectivity to a discovered agent
// before it is admitted into the Registry's live snapshot. Supplied by
// the composition root so internal/registry does not need to know how
// internal/invoke builds its A2A clients.
type Dialer func(ctx context.Context, agent AgentDefinition) error

// Refresh queries Discovery for the current agent set, connects to each
// discovered agent concurrently via dial, and atomically publishes the
// agents that dialed successfully. Individual dial failures are logged
// and the agent is skipped; partial success is acceptable (§4.2).
//
// This is the one place the domain layer reaches for
// golang.org/x/sync/errgroup rather than a hand-rolled WaitGroup: it is
// a bounded fan-out over an external list, not a dependency-ordered
// schedule, so the Executor's own scheduler shape does not fit here.
func (r *Registry) Refresh(ctx context.Context, discovery *DiscoveryClient, dial Dialer) error {
	agents, err := discovery.ListAgents(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	next := make(map[string]AgentDefinition, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, a := range agents {
		a := a
		g.Go(func() error {
			if dial != nil {
				if err := dial(gctx, a); err != nil {
					log.Warn().Err(err).Str("agent_id", a.ID).Msg("skipping agent after failed refresh dial")
					return nil
				}
			}
			mu.Lock()
			next[a.ID] = a
			mu.Unlock()
			return nil
		})
	}
	// errgroup here only collects unexpected internal errors (dial
	// failures are swallowed above as per-agent skips); Wait cannot
	// itself fail for partial connectivity loss.
	if err := g.Wait(); err != nil {
		return err
	}

	r.ReplaceAgents(next)
	return nil
}
