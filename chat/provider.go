package chat

import (
	"context"

	"github.com/skosovsky/draftset"
)

// ToolSpec is the provider-agnostic declaration of one callable tool:
// name, description, and a JSON Schema for the arguments.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request is one completion request. Messages carry the whole transcript;
// the system prompt travels separately because providers disagree on how it
// is encoded (OpenAI: a message, Anthropic: a top-level field).
type Request struct {
	Messages     []Message
	Tools        []ToolSpec
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// StreamCallback receives each text fragment as it arrives. Tool calls are
// delivered once, complete, on the final invocation; a non-nil return aborts
// the stream.
type StreamCallback func(delta string, calls []ToolCall) error

// Provider is a completion backend. Stream must run the full request to
// completion (or ctx cancellation) and is non-restartable: a returned error
// means the turn produced no usable assistant message.
type Provider interface {
	Name() string
	Stream(ctx context.Context, req Request, cb StreamCallback) error
}

// SpecsFor exports every tool registered in reg as provider-agnostic specs,
// sorted by tool name.
func SpecsFor(reg *draftset.Registry) []ToolSpec {
	tools := reg.GetAllTools()
	specs := make([]ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, ToolSpec{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return specs
}
