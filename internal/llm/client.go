package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is an OpenAI-compatible chat completions client. One Client is
// constructed per role (planner / mcp) with that role's API key,
// matching §6's per-role key separation.
type Client struct {
	Endpoint   string
	Model      string
	APIKey     string
	httpClient *http.Client
}

// NewClient returns a Client targeting endpoint with the given model and
// API key. endpoint defaults to the OpenAI API root when empty.
func NewClient(endpoint, model, apiKey string) *Client {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1"
	}
	return &Client{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string           `json:"model"`
	Messages []Message        `json:"messages"`
	Tools    []toolSpec       `json:"tools,omitempty"`
}

type toolSpec struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message      rawAssistantMessage `json:"message"`
		FinishReason string              `json:"finish_reason"`
	} `json:"choices"`
}

type rawAssistantMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	ToolCalls []struct {
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

// Chat sends messages plus the available tools and returns the
// normalized assistant reply with its finish reason.
func (c *Client) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error) {
	req := chatRequest{Model: c.Model, Messages: messages}
	for _, t := range tools {
		req.Tools = append(req.Tools, toolSpec{Type: "function", Function: t})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat completion status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := parsed.Choices[0]
	msg := Message{
		Role:    RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, tc := range choice.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(tc.Function.Arguments),
		})
	}

	return &ChatResponse{
		Message:      msg,
		FinishReason: normalizeFinishReason(choice.FinishReason, len(msg.ToolCalls) > 0),
	}, nil
}

func normalizeFinishReason(raw string, hasToolCalls bool) FinishReason {
	switch raw {
	case "stop":
		return FinishStop
	case "tool_calls":
		return FinishToolCalls
	case "":
		if hasToolCalls {
			return FinishToolCalls
		}
		return FinishStop
	default:
		return FinishOther
	}
}
