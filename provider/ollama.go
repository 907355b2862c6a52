package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/skosovsky/draftset/chat"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	defaultOllamaModel   = "llama3.1:latest"
)

// Ollama implements chat.Provider against a local Ollama server.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama creates an Ollama provider. baseURL and model fall back to
// defaults when empty. No API key is needed.
func NewOllama(baseURL, model string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if model == "" {
		model = defaultOllamaModel
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	return &Ollama{
		client: api.NewClient(parsedURL, http.DefaultClient),
		model:  model,
	}, nil
}

// Name implements chat.Provider.
func (p *Ollama) Name() string {
	return string(TypeOllama)
}

// Stream implements chat.Provider. Content chunks are forwarded to cb as
// they arrive; tool calls are collected across chunks and delivered in a
// single final invocation. Ollama does not assign tool call IDs, so they
// are synthesized here to keep result correlation uniform across providers.
func (p *Ollama) Stream(ctx context.Context, req chat.Request, cb chat.StreamCallback) error {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}

	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: toOllamaMessages(req),
		Tools:    toOllamaTools(req.Tools),
		Stream:   func(b bool) *bool { return &b }(true),
	}
	if req.MaxTokens > 0 {
		chatReq.Options = map[string]any{"num_predict": req.MaxTokens}
	}

	var calls []chat.ToolCall
	respFunc := func(resp api.ChatResponse) error {
		calls = append(calls, fromOllamaToolCalls(resp.Message.ToolCalls)...)
		if resp.Message.Content != "" {
			return cb(resp.Message.Content, nil)
		}
		return nil
	}

	if err := p.client.Chat(ctx, chatReq, respFunc); err != nil {
		return fmt.Errorf("ollama chat: %w", err)
	}

	if len(calls) > 0 {
		return cb("", calls)
	}
	return nil
}

func toOllamaMessages(req chat.Request) []api.Message {
	result := make([]api.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		result = append(result, api.Message{Role: string(chat.RoleSystem), Content: req.SystemPrompt})
	}

	for _, msg := range req.Messages {
		out := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			var args api.ToolCallFunctionArguments
			if err := json.Unmarshal(tc.Arguments, &args); err != nil {
				args = api.ToolCallFunctionArguments{}
			}
			out.ToolCalls = append(out.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      tc.Name,
					Arguments: args,
				},
			})
		}
		result = append(result, out)
	}

	return result
}

func fromOllamaToolCalls(ollamaCalls []api.ToolCall) []chat.ToolCall {
	if len(ollamaCalls) == 0 {
		return nil
	}

	result := make([]chat.ToolCall, len(ollamaCalls))
	for i, call := range ollamaCalls {
		args, err := json.Marshal(call.Function.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		result[i] = chat.ToolCall{
			ID:        "call_" + uuid.NewString(),
			Name:      call.Function.Name,
			Arguments: args,
		}
	}
	return result
}

func toOllamaTools(specs []chat.ToolSpec) []api.Tool {
	if len(specs) == 0 {
		return nil
	}

	result := make([]api.Tool, len(specs))
	for i, spec := range specs {
		result[i] = api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  toOllamaParameters(spec.Parameters),
			},
		}
	}
	return result
}

func toOllamaParameters(schema map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Type:       "object",
		Required:   requiredFields(schema),
		Properties: make(map[string]api.ToolProperty),
	}
	if t, ok := schema["type"].(string); ok {
		params.Type = t
	}
	if defs, ok := schema["$defs"]; ok {
		params.Defs = defs
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		for name, value := range props {
			params.Properties[name] = toOllamaProperty(value)
		}
	}

	return params
}

func toOllamaProperty(value any) api.ToolProperty {
	prop := api.ToolProperty{}

	propMap, ok := value.(map[string]any)
	if !ok {
		// Schema nodes may be typed structs; normalize through JSON.
		raw, err := json.Marshal(value)
		if err != nil {
			return prop
		}
		if err := json.Unmarshal(raw, &propMap); err != nil {
			return prop
		}
	}

	switch t := propMap["type"].(type) {
	case string:
		prop.Type = api.PropertyType{t}
	case []string:
		prop.Type = api.PropertyType(t)
	case []any:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				types = append(types, s)
			}
		}
		prop.Type = api.PropertyType(types)
	}

	if desc, ok := propMap["description"].(string); ok {
		prop.Description = desc
	}
	if enum, ok := propMap["enum"].([]any); ok {
		prop.Enum = enum
	}
	if items, ok := propMap["items"]; ok {
		prop.Items = items
	}
	if anyOf, ok := propMap["anyOf"].([]any); ok {
		props := make([]api.ToolProperty, 0, len(anyOf))
		for _, item := range anyOf {
			props = append(props, toOllamaProperty(item))
		}
		prop.AnyOf = props
	}

	return prop
}
