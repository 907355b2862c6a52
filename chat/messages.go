package chat

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a provider-emitted request to run one tool. Arguments is the
// raw JSON payload as the provider produced it.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one entry of the conversation transcript. Tool-result messages
// carry the originating call ID in ToolCallID so providers can pair them with
// the assistant's tool calls.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Transcript is the append-only message history of one editing session.
// The orchestrator is its only writer; rollback to a known length happens
// solely when a turn fails before completing (provider error, cancellation).
type Transcript struct {
	msgs []Message
}

// Append adds a message, stamping Timestamp if unset.
func (t *Transcript) Append(m Message) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	t.msgs = append(t.msgs, m)
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

// Len reports the number of messages.
func (t *Transcript) Len() int {
	return len(t.msgs)
}

// Clear drops all messages.
func (t *Transcript) Clear() {
	t.msgs = nil
}

// truncate rolls the transcript back to n messages. Used to discard the
// partial messages of a failed turn.
func (t *Transcript) truncate(n int) {
	if n < 0 || n > len(t.msgs) {
		return
	}
	t.msgs = t.msgs[:n]
}
