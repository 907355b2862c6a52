package provider

import (
	"encoding/json"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skosovsky/draftset/chat"
)

func TestToAnthropicMessages(t *testing.T) {
	messages := []chat.Message{
		{Role: chat.RoleSystem, Content: "ignored here"},
		{Role: chat.RoleUser, Content: "remove the old license"},
		{
			Role:    chat.RoleAssistant,
			Content: "Removing it.",
			ToolCalls: []chat.ToolCall{
				{ID: "c1", Name: "propose_change", Arguments: json.RawMessage(`{"path":"license"}`)},
			},
		},
		{Role: chat.RoleTool, Content: `{"success":true}`, ToolCallID: "c1"},
	}

	result := toAnthropicMessages(messages)

	// System messages are carried in the request's System field, not the
	// message array.
	require.Len(t, result, 3)

	assert.Equal(t, anthropic.MessageParamRoleUser, result[0].Role)

	assistant := result[1]
	assert.Equal(t, anthropic.MessageParamRoleAssistant, assistant.Role)
	require.Len(t, assistant.Content, 2)
	require.NotNil(t, assistant.Content[0].OfText)
	assert.Equal(t, "Removing it.", assistant.Content[0].OfText.Text)
	require.NotNil(t, assistant.Content[1].OfToolUse)
	assert.Equal(t, "c1", assistant.Content[1].OfToolUse.ID)
	assert.Equal(t, "propose_change", assistant.Content[1].OfToolUse.Name)

	toolResult := result[2]
	assert.Equal(t, anthropic.MessageParamRoleUser, toolResult.Role)
	require.Len(t, toolResult.Content, 1)
	require.NotNil(t, toolResult.Content[0].OfToolResult)
	assert.Equal(t, "c1", toolResult.Content[0].OfToolResult.ToolUseID)
}

func TestToAnthropicMessages_ToolCallsWithoutText(t *testing.T) {
	messages := []chat.Message{
		{
			Role: chat.RoleAssistant,
			ToolCalls: []chat.ToolCall{
				{ID: "c1", Name: "list_changes", Arguments: json.RawMessage(`{}`)},
			},
		},
	}

	result := toAnthropicMessages(messages)
	require.Len(t, result, 1)
	require.Len(t, result[0].Content, 1)
	assert.NotNil(t, result[0].Content[0].OfToolUse)
}

func TestToAnthropicTools(t *testing.T) {
	specs := []chat.ToolSpec{
		{
			Name:        "propose_change",
			Description: "Stage an edit",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":  map[string]any{"type": "string"},
					"value": map[string]any{},
				},
				"required": []string{"path"},
			},
		},
	}

	result := toAnthropicTools(specs)
	require.Len(t, result, 1)

	tool := result[0].OfTool
	require.NotNil(t, tool)
	assert.Equal(t, "propose_change", tool.Name)
	assert.Equal(t, "Stage an edit", tool.Description.Value)
	assert.Equal(t, []string{"path"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties.(map[string]any), "path")
}

func TestRequiredFields(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, requiredFields(map[string]any{"required": []string{"a", "b"}}))
	assert.Equal(t, []string{"a"}, requiredFields(map[string]any{"required": []any{"a", 7}}))
	assert.Nil(t, requiredFields(map[string]any{}))
	assert.Nil(t, requiredFields(map[string]any{"required": "a"}))
}
