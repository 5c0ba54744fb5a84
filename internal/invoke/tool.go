package invoke

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/meshwork/orchestrator/internal/mcp"
)

// McpToolInvoker forwards activity dispatch to the MCP client (§4.3).
type McpToolInvoker struct {
	client *mcp.Client
}

// NewMcpToolInvoker returns an invoker that calls tools through client.
func NewMcpToolInvoker(client *mcp.Client) *McpToolInvoker {
	return &McpToolInvoker{client: client}
}

// Invoke calls toolID with params and maps the CallToolResult content
// list into a single JSON value.
func (inv *McpToolInvoker) Invoke(ctx context.Context, toolID string, params json.RawMessage) (json.RawMessage, error) {
	ctx, done := startSpan(ctx, "tool", toolID)
	out, err := inv.invoke(ctx, toolID, params)
	done(err)
	return out, err
}

func (inv *McpToolInvoker) invoke(ctx context.Context, toolID string, params json.RawMessage) (json.RawMessage, error) {
	var args map[string]interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, &Error{Kind: "tool", Target: toolID, Err: fmt.Errorf("invalid tool params: %w", err)}
		}
	}

	result, err := inv.client.CallTool(ctx, toolID, args)
	if err != nil {
		return nil, &Error{Kind: "tool", Target: toolID, Err: err}
	}
	if result.IsError {
		return nil, &Error{Kind: "tool", Target: toolID, Err: fmt.Errorf("tool reported an error: %s", joinText(result))}
	}

	text := joinText(result)
	var v interface{}
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return json.RawMessage(text), nil
	}
	wrapped, _ := json.Marshal(map[string]string{"text": text})
	return wrapped, nil
}

func joinText(result *mcp.CallToolResult) string {
	var out string
	for _, c := range result.Content {
		out += c.Text
	}
	return out
}
