package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/skosovsky/draftset"
)

// State is the orchestrator's observable phase within a turn.
type State string

const (
	// StateIdle means no turn is in flight.
	StateIdle State = "idle"
	// StateAwaitingCompletion means a completion request is streaming.
	StateAwaitingCompletion State = "awaiting_completion"
	// StateRunningTools means provider-requested tool calls are executing.
	StateRunningTools State = "running_tools"
	// StateErrored means the last turn failed; the transcript holds only
	// complete messages and the next Send starts clean.
	StateErrored State = "errored"
)

// Sentinel errors returned by Send. Use errors.Is.
var (
	// ErrProvider wraps completion backend failures so callers can tell a
	// network problem from a tool or usage error.
	ErrProvider = errors.New("completion provider failure")
	// ErrRoundLimit is returned when the assistant keeps requesting tool
	// calls past MaxToolRounds; the turn ends with a stop notice instead of
	// an unbounded request loop.
	ErrRoundLimit = errors.New("tool round limit reached")
	// ErrBusy is returned when Send is called while a turn is in flight.
	ErrBusy = errors.New("a turn is already in progress")
)

// DefaultMaxToolRounds bounds completion→tools round trips within one turn.
const DefaultMaxToolRounds = 5

const roundLimitNotice = "Stopped: the assistant requested too many consecutive tool calls. " +
	"Partial results above; pending edits are preserved."

// Orchestrator drives the turn state machine over one Provider and one tool
// Registry. It owns the transcript. A single orchestrator serves a single
// editing session; Send rejects concurrent turns rather than interleaving
// them.
type Orchestrator struct {
	provider Provider
	registry *draftset.Registry

	mu         sync.Mutex
	inFlight   bool
	state      State
	transcript *Transcript

	maxToolRounds int
	systemPrompt  string
	model         string
	maxTokens     int
	logger        *slog.Logger
	onState       func(State)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxToolRounds bounds the completion→tools loop per turn. Values below 1
// keep the default.
func WithMaxToolRounds(n int) Option {
	return func(o *Orchestrator) {
		if n >= 1 {
			o.maxToolRounds = n
		}
	}
}

// WithSystemPrompt sets the system prompt sent with every completion.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithModel sets the model override passed to the provider.
func WithModel(model string) Option {
	return func(o *Orchestrator) { o.model = model }
}

// WithMaxTokens caps the completion length per request.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// WithLogger sets the structured logger for turn events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStateHook registers a callback invoked on every state transition.
// It runs on the Send goroutine; keep it fast.
func WithStateHook(fn func(State)) Option {
	return func(o *Orchestrator) { o.onState = fn }
}

// NewOrchestrator wires a provider and a tool registry into a turn loop.
func NewOrchestrator(p Provider, reg *draftset.Registry, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      p,
		registry:      reg,
		state:         StateIdle,
		transcript:    &Transcript{},
		maxToolRounds: DefaultMaxToolRounds,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current turn phase.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Transcript returns a snapshot copy of the message history.
func (o *Orchestrator) Transcript() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript.Messages()
}

// Reset clears the transcript. Fails while a turn is in flight.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrBusy
	}
	o.transcript.Clear()
	o.state = StateIdle
	return nil
}

// Restore replaces the transcript with msgs, e.g. when resuming a saved
// conversation. Fails while a turn is in flight.
func (o *Orchestrator) Restore(msgs []Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.inFlight {
		return ErrBusy
	}
	o.transcript.Clear()
	for _, m := range msgs {
		o.transcript.Append(m)
	}
	o.state = StateIdle
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	hook := o.onState
	o.mu.Unlock()
	if hook != nil {
		hook(s)
	}
}

// Send runs one full turn: append the user message, stream the completion
// (text deltas via onDelta, which may be nil), execute any requested tool
// calls strictly in emission order, feed their results back, and repeat until
// the assistant answers in plain text or MaxToolRounds is exhausted.
//
// On provider failure or cancellation the transcript is rolled back to the
// last complete state before the turn, so an aborted stream never leaves a
// partial assistant message behind. Tool failures do not abort the turn: they
// come back to the assistant as structured error payloads.
func (o *Orchestrator) Send(ctx context.Context, userText string, onDelta func(string) error) (string, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return "", ErrBusy
	}
	o.inFlight = true
	mark := o.transcript.Len()
	o.transcript.Append(Message{Role: RoleUser, Content: userText})
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	text, err := o.runTurn(ctx, onDelta, &mark)
	if err != nil {
		// The round-limit turn is made of complete messages plus a visible
		// stop notice; it stays. Other failures roll back to the end of the
		// last complete tool round: results of tools that already ran (and
		// whose edits are staged) are kept, while a turn that never finished
		// a round is discarded whole.
		if !errors.Is(err, ErrRoundLimit) {
			o.mu.Lock()
			o.transcript.truncate(mark)
			o.mu.Unlock()
		}
		o.setState(StateErrored)
		return "", err
	}
	o.setState(StateIdle)
	return text, nil
}

// runTurn advances rollback to the transcript length after each completed
// tool round, so a later failure truncates only the unfinished tail.
func (o *Orchestrator) runTurn(ctx context.Context, onDelta func(string) error, rollback *int) (string, error) {
	specs := SpecsFor(o.registry)

	for round := 1; ; round++ {
		o.setState(StateAwaitingCompletion)

		req := Request{
			Messages:     o.Transcript(),
			Tools:        specs,
			SystemPrompt: o.systemPrompt,
			Model:        o.model,
			MaxTokens:    o.maxTokens,
		}
		text, calls, err := o.streamOnce(ctx, req, onDelta)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("%w: %w", ErrProvider, err)
		}

		o.mu.Lock()
		o.transcript.Append(Message{Role: RoleAssistant, Content: text, ToolCalls: calls})
		o.mu.Unlock()

		if len(calls) == 0 {
			return text, nil
		}
		if round > o.maxToolRounds {
			o.mu.Lock()
			// The calls above were never executed. Pair each with a stub
			// result so the transcript stays a sequence the provider APIs
			// accept on the next turn: both OpenAI and Anthropic reject an
			// assistant tool-call message without matching tool results.
			for _, c := range calls {
				o.transcript.Append(Message{
					Role:       RoleTool,
					Content:    `{"success":false,"error":"not executed: tool round limit reached"}`,
					ToolCallID: c.ID,
				})
			}
			o.transcript.Append(Message{Role: RoleAssistant, Content: roundLimitNotice})
			o.mu.Unlock()
			o.logger.Warn("turn stopped at tool round limit", "rounds", o.maxToolRounds)
			return "", fmt.Errorf("%w after %d rounds", ErrRoundLimit, o.maxToolRounds)
		}

		o.setState(StateRunningTools)
		o.logger.Info("running tool calls", "count", len(calls), "round", round)

		batch := make([]draftset.ToolCall, len(calls))
		for i, c := range calls {
			batch[i] = draftset.ToolCall{ID: c.ID, ToolName: c.Name, Args: c.Arguments}
		}
		results := o.registry.ExecuteBatch(ctx, batch)
		if err := ctx.Err(); err != nil {
			return "", err
		}
		o.mu.Lock()
		for _, res := range results {
			o.transcript.Append(Message{
				Role:       RoleTool,
				Content:    toolResultPayload(res),
				ToolCallID: res.CallID,
			})
		}
		*rollback = o.transcript.Len()
		o.mu.Unlock()
	}
}

// streamOnce runs one completion, folding deltas into the final text and
// collecting tool calls.
func (o *Orchestrator) streamOnce(ctx context.Context, req Request, onDelta func(string) error) (string, []ToolCall, error) {
	var sb strings.Builder
	var calls []ToolCall
	err := o.provider.Stream(ctx, req, func(delta string, c []ToolCall) error {
		if delta != "" {
			sb.WriteString(delta)
			if onDelta != nil {
				if err := onDelta(delta); err != nil {
					return err
				}
			}
		}
		if len(c) > 0 {
			calls = append(calls, c...)
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return sb.String(), calls, nil
}

// toolResultPayload renders a tool result as the JSON the assistant sees.
// ClientError reasons (and hints) pass through for self-correction; system
// errors are reported without internals.
func toolResultPayload(res draftset.ToolResult) string {
	if res.Error == nil {
		if len(res.Result) == 0 {
			return `{"success":true}`
		}
		return string(res.Result)
	}
	var ce *draftset.ClientError
	if errors.As(res.Error, &ce) {
		out := map[string]any{"success": false, "error": ce.Reason}
		if ce.Hint != "" {
			out["hint"] = ce.Hint
		}
		return mustJSON(out)
	}
	// A wrong tool name is the assistant's mistake, not an internal one.
	if errors.Is(res.Error, draftset.ErrToolNotFound) {
		return mustJSON(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("unknown tool %q", res.ToolName),
			"hint":    "call one of the declared tools by its exact name",
		})
	}
	return mustJSON(map[string]any{
		"success": false,
		"error":   "tool execution failed; this is an internal problem, not an input problem",
	})
}

func mustJSON(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"success":false,"error":"result serialization failed"}`
	}
	return string(b)
}
