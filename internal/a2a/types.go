// Package a2a implements the consumed surface of the Agent-to-Agent
// protocol: the wire types, an outbound client used by AgentInvoker, and
// the inbound boundary adapter that turns a received Message into an
// Executor invocation.
package a2a

import "encoding/json"

// TaskState is the lifecycle state of an A2A Task.
type TaskState string

const (
	TaskSubmitted     TaskState = "submitted"
	TaskWorking       TaskState = "working"
	TaskInputRequired TaskState = "input_required"
	TaskCompleted     TaskState = "completed"
	TaskCanceled      TaskState = "canceled"
	TaskFailed        TaskState = "failed"
)

// Role identifies who authored a Message.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// PartKind tags the variant a Part carries. The core emits and expects
// only Text (§6).
type PartKind string

const TextPart PartKind = "text"

// Part is a tagged union of message content; only the Text variant is
// populated by this implementation.
type Part struct {
	Kind     PartKind                   `json:"kind"`
	Text     string                     `json:"text,omitempty"`
	Metadata map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Message is one turn of an A2A conversation.
type Message struct {
	Role      Role                       `json:"role"`
	Parts     []Part                     `json:"parts"`
	MessageID string                     `json:"message_id"`
	Metadata  map[string]json.RawMessage `json:"metadata,omitempty"`
}

// Status is a Task's current state plus the message that produced it.
type Status struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

// Task is the unit of work exchanged over A2A.
type Task struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

// Text concatenates every Text part of a Message, the boundary adapter's
// way of recovering a single user query string (§4.7).
func (m Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if p.Kind == TextPart {
			out += p.Text
		}
	}
	return out
}
