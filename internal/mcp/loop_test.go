package mcp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshwork/orchestrator/internal/llm"
	"github.com/meshwork/orchestrator/internal/mcp"
)

// stubMCPServer answers tools/list and tools/call deterministically.
func stubMCPServer(t *testing.T, toolCallCount *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req["method"] {
		case "tools/list":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req["id"],
				"result": map[string]interface{}{
					"tools": []map[string]interface{}{
						{"name": "weather", "description": "looks up weather"},
					},
				},
			})
		case "tools/call":
			*toolCallCount++
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req["id"],
				"result": map[string]interface{}{
					"content": []map[string]string{{"type": "text", "text": "sunny"}},
				},
			})
		}
	}))
}

func TestLoop_StopsOnFinishStop(t *testing.T) {
	var toolCalls int
	mcpServer := stubMCPServer(t, &toolCalls)
	defer mcpServer.Close()

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "r1",
			"choices": []map[string]interface{}{
				{"finish_reason": "stop", "message": map[string]string{"role": "assistant", "content": "done"}},
			},
		})
	}))
	defer llmServer.Close()

	loop := mcp.NewLoop(llm.NewClient(llmServer.URL, "gpt-test", "key"), mcp.NewClient(mcpServer.URL, ""))
	out, err := loop.Run(context.Background(), "system", "hello", 3)
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, 0, toolCalls)
}

func TestLoop_ExceedsMaxLoops(t *testing.T) {
	var toolCalls int
	mcpServer := stubMCPServer(t, &toolCalls)
	defer mcpServer.Close()

	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "r1",
			"choices": []map[string]interface{}{
				{
					"finish_reason": "tool_calls",
					"message": map[string]interface{}{
						"role": "assistant",
						"tool_calls": []map[string]interface{}{
							{"id": "c1", "function": map[string]string{"name": "weather", "arguments": `{}`}},
						},
					},
				},
			},
		})
	}))
	defer llmServer.Close()

	loop := mcp.NewLoop(llm.NewClient(llmServer.URL, "gpt-test", "key"), mcp.NewClient(mcpServer.URL, ""))
	_, err := loop.Run(context.Background(), "system", "hello", 3)

	require.Error(t, err)
	var exceeded *mcp.MaxLoopsExceeded
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 3, toolCalls)
}
