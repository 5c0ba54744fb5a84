package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/meshwork/orchestrator/internal/llm"
)

// MaxLoopsExceeded is returned when the agent loop exhausts its
// iteration budget without the LLM reaching a "stop" finish reason.
// Unlike the reference executor (which returns a soft "[Max turns
// reached]" message and continues), this is a hard error: §4.6
// requires the loop to abort rather than hang or silently truncate.
type MaxLoopsExceeded struct {
	MaxLoops int
}

func (e *MaxLoopsExceeded) Error() string {
	return fmt.Sprintf("exceeded maximum iterations (%d)", e.MaxLoops)
}

// Loop drives the bounded LLM <-> MCP tool reasoning loop described in
// §4.6: every tool call the LLM emits is answered with exactly one
// tool-role message before the next LLM call, until the model returns
// finish_reason "stop" or the loop exceeds maxLoops.
type Loop struct {
	LLM *llm.Client
	MCP *Client
}

// NewLoop returns a Loop driving chatClient against mcpClient's tool
// catalog.
func NewLoop(chatClient *llm.Client, mcpClient *Client) *Loop {
	return &Loop{LLM: chatClient, MCP: mcpClient}
}

// Run seeds the conversation with systemPrompt and userMessage, then
// drives the loop until a final assistant message is produced or
// maxLoops is exceeded.
func (l *Loop) Run(ctx context.Context, systemPrompt, userMessage string, maxLoops int) (string, error) {
	tools, err := l.MCP.ListTools(ctx)
	if err != nil {
		return "", fmt.Errorf("list mcp tools: %w", err)
	}
	toolDefs := toLLMToolDefs(tools)

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: userMessage},
	}

	for iteration := 1; iteration <= maxLoops; iteration++ {
		resp, err := l.LLM.Chat(ctx, messages, toolDefs)
		if err != nil {
			return "", fmt.Errorf("chat completion (iteration %d): %w", iteration, err)
		}

		switch resp.FinishReason {
		case llm.FinishStop:
			return resp.Message.Content, nil

		case llm.FinishToolCalls:
			messages = append(messages, resp.Message)
			for _, call := range resp.Message.ToolCalls {
				messages = append(messages, l.executeToolCall(ctx, call))
			}
			log.Debug().Int("iteration", iteration).Int("tool_calls", len(resp.Message.ToolCalls)).Msg("mcp agent loop continuing")

		default:
			return resp.Message.Content, nil
		}
	}

	return "", &MaxLoopsExceeded{MaxLoops: maxLoops}
}

// executeToolCall invokes one requested tool and returns the tool-role
// message that must follow it in the conversation, whether the call
// succeeded or failed.
func (l *Loop) executeToolCall(ctx context.Context, call llm.ToolCall) llm.Message {
	var args map[string]interface{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return toolErrorMessage(call, fmt.Errorf("invalid tool arguments: %w", err))
		}
	}

	result, err := l.MCP.CallTool(ctx, call.Name, args)
	if err != nil {
		return toolErrorMessage(call, err)
	}
	if result.IsError {
		return toolErrorMessage(call, fmt.Errorf("tool reported an error: %s", contentText(result.Content)))
	}

	return llm.Message{
		Role:       llm.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    contentText(result.Content),
	}
}

func toolErrorMessage(call llm.ToolCall, err error) llm.Message {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return llm.Message{
		Role:       llm.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    string(body),
	}
}

func contentText(content []Content) string {
	var out string
	for _, c := range content {
		out += c.Text
	}
	return out
}

func toLLMToolDefs(tools []Tool) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}
