package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/skosovsky/draftset/chat"
)

// ProviderTurn is one scripted completion for MockProvider: text deltas to
// stream, tool calls to emit afterwards, and an optional error to return
// instead.
type ProviderTurn struct {
	Deltas []string
	Calls  []chat.ToolCall
	Err    error
}

// MockProvider is a scripted chat.Provider. Each Stream call consumes the
// next turn; every request is recorded for assertions.
type MockProvider struct {
	Turns []ProviderTurn

	mu       sync.Mutex
	next     int
	requests []chat.Request
}

// Name implements chat.Provider.
func (m *MockProvider) Name() string {
	return "mock"
}

// Stream implements chat.Provider by replaying the next scripted turn.
func (m *MockProvider) Stream(_ context.Context, req chat.Request, cb chat.StreamCallback) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	if m.next >= len(m.Turns) {
		m.mu.Unlock()
		return fmt.Errorf("mock provider: no scripted turn for request %d", len(m.requests))
	}
	turn := m.Turns[m.next]
	m.next++
	m.mu.Unlock()

	if turn.Err != nil {
		return turn.Err
	}
	for _, delta := range turn.Deltas {
		if err := cb(delta, nil); err != nil {
			return err
		}
	}
	if len(turn.Calls) > 0 {
		return cb("", turn.Calls)
	}
	return nil
}

// Requests returns a copy of every chat.Request seen so far.
func (m *MockProvider) Requests() []chat.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]chat.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Ensure MockProvider implements chat.Provider.
var _ chat.Provider = (*MockProvider)(nil)
