package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// TimeoutError reports that an outbound A2A call exceeded its deadline
// (§5: every outbound call carries a deadline).
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("a2a %s timed out", e.Op)
}

// Client sends messages to a single remote agent endpoint and polls its
// tasks. One Client is dialed per discovered agent (§4.2).
type Client struct {
	Endpoint   string
	httpClient *http.Client
}

// NewClient returns a Client targeting endpoint with the given call
// timeout.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		Endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sendTaskMessageRequest struct {
	TaskID  string  `json:"task_id"`
	Message Message `json:"message"`
	Session string  `json:"session,omitempty"`
}

// SendTaskMessage posts message to the remote agent under taskID and
// returns the resulting Task.
func (c *Client) SendTaskMessage(ctx context.Context, taskID string, message Message, session string) (*Task, error) {
	if taskID == "" {
		taskID = uuid.New().String()
	}
	body, err := json.Marshal(sendTaskMessageRequest{TaskID: taskID, Message: message, Session: session})
	if err != nil {
		return nil, fmt.Errorf("encode send_task_message: %w", err)
	}

	task, err := c.post(ctx, "/a2a/message", body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Op: "send_task_message"}
		}
		return nil, err
	}
	return task, nil
}

// GetTask fetches the current state of taskID, optionally bounding the
// returned message history.
func (c *Client) GetTask(ctx context.Context, taskID string, historyLength int) (*Task, error) {
	path := fmt.Sprintf("/a2a/task/%s?history_length=%d", taskID, historyLength)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create get_task request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Op: "get_task"}
		}
		return nil, fmt.Errorf("get_task request failed: %w", err)
	}
	defer resp.Body.Close()

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode get_task response: %w", err)
	}
	return &task, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*Task, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	var task Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &task, nil
}
