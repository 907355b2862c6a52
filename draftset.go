package draftset

import (
	"context"
	"encoding/json"
	"time"
)

// Tool is the contract for an LLM-callable instrument. It is
// provider-agnostic (no knowledge of OpenAI, Anthropic, etc.). Execution is
// always awaited to completion: the returned bytes are the full JSON result
// that is folded back into the conversation transcript.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns a valid JSON Schema as map (compatible with LLM tool definitions).
	Parameters() map[string]any
	// Execute runs the tool against argsJSON and returns the JSON result.
	// Errors cross this boundary as ClientError (assistant-correctable) or
	// SystemError (internal); never as panics.
	Execute(ctx context.Context, argsJSON []byte) ([]byte, error)
}

// ToolMetadata is implemented by tools created with NewTool and provides
// optional per-tool settings. Registry uses Timeout() to override the default
// execution timeout when set. Other methods expose tags, version, and the
// mutating flag for orchestration or display.
type ToolMetadata interface {
	Timeout() time.Duration
	Tags() []string
	Version() string
	// IsMutating reports whether the tool stages document edits. The
	// orchestrator executes mutating tools strictly in emission order so each
	// proposal validates against the changeset state left by the previous one.
	IsMutating() bool
}

// ToolCall is a single execution request (as produced by the LLM).
type ToolCall struct {
	ID       string
	ToolName string
	Args     json.RawMessage // JSON payload of arguments
}

// ToolResult is the outcome of one tool call. Exactly one of Result/Error is
// meaningful; Error carries the draftset taxonomy (ClientError vs SystemError)
// so callers can decide what the LLM is allowed to see.
type ToolResult struct {
	CallID   string
	ToolName string
	Result   json.RawMessage
	Error    error
	Duration time.Duration
}
