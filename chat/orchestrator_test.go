package chat

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/draftset"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptTurn is one scripted provider response: text deltas, then tool calls.
type scriptTurn struct {
	deltas []string
	calls  []ToolCall
	err    error
}

// scriptProvider replays scripted turns in order and records the requests it saw.
type scriptProvider struct {
	turns    []scriptTurn
	next     int
	requests []Request
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) Stream(ctx context.Context, req Request, cb StreamCallback) error {
	p.requests = append(p.requests, req)
	if p.next >= len(p.turns) {
		return errors.New("script exhausted")
	}
	turn := p.turns[p.next]
	p.next++
	if turn.err != nil {
		return turn.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, d := range turn.deltas {
		if err := cb(d, nil); err != nil {
			return err
		}
	}
	if len(turn.calls) > 0 {
		if err := cb("", turn.calls); err != nil {
			return err
		}
	}
	return nil
}

func echoRegistry(t *testing.T) (*draftset.Registry, *int) {
	t.Helper()
	var invocations int
	type args struct {
		Path string `json:"path"`
	}
	type result struct {
		Success bool `json:"success"`
	}
	tool, err := draftset.NewTool("read_field", "Read a field", func(_ context.Context, _ args) (result, error) {
		invocations++
		return result{Success: true}, nil
	})
	require.NoError(t, err)
	reg := draftset.NewRegistry()
	reg.Register(tool)
	return reg, &invocations
}

func TestOrchestrator_Send_TextOnly(t *testing.T) {
	p := &scriptProvider{turns: []scriptTurn{
		{deltas: []string{"Hel", "lo"}},
	}}
	reg, _ := echoRegistry(t)
	o := NewOrchestrator(p, reg, WithSystemPrompt("You edit metadata."))

	var streamed string
	text, err := o.Send(context.Background(), "hi", func(d string) error {
		streamed += d
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "Hello", streamed)
	assert.Equal(t, StateIdle, o.State())

	msgs := o.Transcript()
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hi", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].Content)

	// provider saw the system prompt and the tool specs
	require.Len(t, p.requests, 1)
	assert.Equal(t, "You edit metadata.", p.requests[0].SystemPrompt)
	require.Len(t, p.requests[0].Tools, 1)
	assert.Equal(t, "read_field", p.requests[0].Tools[0].Name)
}

func TestOrchestrator_Send_ToolRound(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "read_field", Arguments: json.RawMessage(`{"path":"name"}`)}
	p := &scriptProvider{turns: []scriptTurn{
		{deltas: []string{"Let me check."}, calls: []ToolCall{call}},
		{deltas: []string{"The name is Alpha."}},
	}}
	reg, invocations := echoRegistry(t)
	o := NewOrchestrator(p, reg)

	text, err := o.Send(context.Background(), "what is the name?", nil)
	require.NoError(t, err)
	assert.Equal(t, "The name is Alpha.", text)
	assert.Equal(t, 1, *invocations)

	msgs := o.Transcript()
	require.Len(t, msgs, 4)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.JSONEq(t, `{"success":true}`, msgs[2].Content)
	assert.Equal(t, RoleAssistant, msgs[3].Role)

	// second request carried the tool result back to the provider
	require.Len(t, p.requests, 2)
	last := p.requests[1].Messages[len(p.requests[1].Messages)-1]
	assert.Equal(t, RoleTool, last.Role)
}

func TestOrchestrator_Send_ToolErrorFeedsBack(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "missing_tool", Arguments: json.RawMessage(`{}`)}
	p := &scriptProvider{turns: []scriptTurn{
		{calls: []ToolCall{call}},
		{deltas: []string{"Sorry, no such tool."}},
	}}
	reg, _ := echoRegistry(t)
	o := NewOrchestrator(p, reg)

	text, err := o.Send(context.Background(), "go", nil)
	require.NoError(t, err, "tool failure must not abort the turn")
	assert.Equal(t, "Sorry, no such tool.", text)

	msgs := o.Transcript()
	require.Len(t, msgs, 4)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(msgs[2].Content), &payload))
	assert.Equal(t, false, payload["success"])
	assert.Contains(t, payload["error"], `unknown tool "missing_tool"`)
	assert.NotEmpty(t, payload["hint"], "a wrong tool name is correctable, not internal")
}

func TestOrchestrator_Send_RoundLimit(t *testing.T) {
	call := ToolCall{ID: "loop", Name: "read_field", Arguments: json.RawMessage(`{"path":"name"}`)}
	turns := make([]scriptTurn, 0, 8)
	for range 8 {
		turns = append(turns, scriptTurn{calls: []ToolCall{call}})
	}
	p := &scriptProvider{turns: turns}
	reg, invocations := echoRegistry(t)
	o := NewOrchestrator(p, reg, WithMaxToolRounds(2))

	_, err := o.Send(context.Background(), "loop forever", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoundLimit)
	assert.Equal(t, 2, *invocations, "tool rounds past the bound must not execute")

	msgs := o.Transcript()
	require.NotEmpty(t, msgs)
	lastMsg := msgs[len(msgs)-1]
	assert.Equal(t, RoleAssistant, lastMsg.Role)
	assert.Contains(t, lastMsg.Content, "Stopped")

	// every requested call got a tool-result reply, including the calls the
	// limit refused to run, so the transcript stays provider-valid
	assertToolCallsPaired(t, msgs)
	stub := msgs[len(msgs)-2]
	assert.Equal(t, RoleTool, stub.Role)
	assert.Equal(t, "loop", stub.ToolCallID)
	assert.Contains(t, stub.Content, "not executed")

	// the next turn continues on the kept transcript
	p.turns = append(p.turns, scriptTurn{deltas: []string{"ok, stopping"}})
	text, err := o.Send(context.Background(), "stop looping", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok, stopping", text)
	assertToolCallsPaired(t, o.Transcript())
}

// assertToolCallsPaired fails if any assistant tool call lacks a later
// tool-result message with its call ID.
func assertToolCallsPaired(t *testing.T, msgs []Message) {
	t.Helper()
	replied := make(map[string]bool)
	for _, m := range msgs {
		if m.Role == RoleTool {
			replied[m.ToolCallID] = true
		}
	}
	for _, m := range msgs {
		for _, c := range m.ToolCalls {
			assert.True(t, replied[c.ID], "tool call %s has no tool-result message", c.ID)
		}
	}
}

func TestOrchestrator_Send_MidTurnFailureKeepsCompletedRounds(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "read_field", Arguments: json.RawMessage(`{"path":"name"}`)}
	p := &scriptProvider{turns: []scriptTurn{
		{calls: []ToolCall{call}},
		{err: errors.New("connection reset")},
	}}
	reg, invocations := echoRegistry(t)
	o := NewOrchestrator(p, reg)

	_, err := o.Send(context.Background(), "go", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, 1, *invocations)

	// the completed tool round survives: its edit is already staged, so the
	// transcript must keep recording it
	msgs := o.Transcript()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assertToolCallsPaired(t, msgs)
}

func TestOrchestrator_Send_ProviderFailureRollsBack(t *testing.T) {
	p := &scriptProvider{turns: []scriptTurn{
		{err: errors.New("connection reset")},
	}}
	reg, _ := echoRegistry(t)
	o := NewOrchestrator(p, reg)

	_, err := o.Send(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Equal(t, StateErrored, o.State())
	assert.Empty(t, o.Transcript(), "failed turn must leave no partial messages")

	// the next turn starts clean
	p.turns = append(p.turns, scriptTurn{deltas: []string{"recovered"}})
	text, err := o.Send(context.Background(), "again", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	require.Len(t, o.Transcript(), 2)
}

func TestOrchestrator_Send_CancellationDiscardsPartial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptProvider{turns: []scriptTurn{
		{deltas: []string{"partial text"}},
	}}
	reg, _ := echoRegistry(t)
	o := NewOrchestrator(p, reg)

	_, err := o.Send(ctx, "hello", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, o.Transcript())
}

func TestOrchestrator_Reset(t *testing.T) {
	p := &scriptProvider{turns: []scriptTurn{{deltas: []string{"ok"}}}}
	reg, _ := echoRegistry(t)
	o := NewOrchestrator(p, reg)
	_, err := o.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.NotEmpty(t, o.Transcript())
	require.NoError(t, o.Reset())
	assert.Empty(t, o.Transcript())
	assert.Equal(t, StateIdle, o.State())
}

func TestOrchestrator_Restore(t *testing.T) {
	p := &scriptProvider{turns: []scriptTurn{{deltas: []string{"ok"}}}}
	reg, _ := echoRegistry(t)
	o := NewOrchestrator(p, reg)

	stamp := time.Now()
	saved := []Message{
		{Role: RoleUser, Content: "earlier question", Timestamp: stamp},
		{Role: RoleAssistant, Content: "earlier answer", Timestamp: stamp},
	}
	require.NoError(t, o.Restore(saved))
	assert.Equal(t, saved, o.Transcript())
	assert.Equal(t, StateIdle, o.State())

	// a new turn builds on the restored transcript
	_, err := o.Send(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Len(t, o.Transcript(), 4)
}

func TestOrchestrator_StateHook(t *testing.T) {
	p := &scriptProvider{turns: []scriptTurn{
		{calls: []ToolCall{{ID: "c1", Name: "read_field", Arguments: json.RawMessage(`{"path":"x"}`)}}},
		{deltas: []string{"done"}},
	}}
	reg, _ := echoRegistry(t)
	var states []State
	o := NewOrchestrator(p, reg, WithStateHook(func(s State) { states = append(states, s) }))

	_, err := o.Send(context.Background(), "go", nil)
	require.NoError(t, err)
	assert.Equal(t, []State{
		StateAwaitingCompletion,
		StateRunningTools,
		StateAwaitingCompletion,
		StateIdle,
	}, states)
}

func TestTranscript_SnapshotIsACopy(t *testing.T) {
	tr := &Transcript{}
	tr.Append(Message{Role: RoleUser, Content: "a"})
	snap := tr.Messages()
	snap[0].Content = "mutated"
	assert.Equal(t, "a", tr.Messages()[0].Content)
	assert.False(t, tr.Messages()[0].Timestamp.IsZero())
}
