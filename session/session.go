// Package session ties the pieces together into one editing session: a base
// document fetched from the archive, an Editor holding pending changes, a
// tool registry with the draft editing and lookup toolkits, and a chat
// orchestrator driving the assistant.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/skosovsky/draftset"
	"github.com/skosovsky/draftset/archive"
	"github.com/skosovsky/draftset/chat"
	"github.com/skosovsky/draftset/config"
	"github.com/skosovsky/draftset/toolkit/lookup"
	"github.com/skosovsky/draftset/toolkit/metadata"
)

// ErrNoDocument is returned by Send and Commit before a document is loaded.
var ErrNoDocument = errors.New("no document loaded")

// ErrNothingToCommit is returned by Commit when there are no pending changes.
var ErrNothingToCommit = errors.New("nothing to commit")

const defaultSystemPrompt = "You are a careful metadata curator. You edit one draft document " +
	"through the provided tools. Stage edits with propose_change, inspect state with read_field " +
	"and list_changes, and undo mistakes with revert_change. When a proposal is rejected, read " +
	"the errors, correct the edit, and try again. Use the lookup tools to verify identifiers " +
	"before writing them into the draft."

// Session is a single-user editing session over one archive document.
type Session struct {
	id        string
	validator *draftset.Validator
	editor    *draftset.Editor
	registry  *draftset.Registry
	orch      *chat.Orchestrator
	archive   *archive.Client
	logger    *slog.Logger

	mu         sync.Mutex
	docID      string
	docVersion string
	loaded     bool
}

// Option configures a Session beyond what config.Config covers.
type Option func(*options)

type options struct {
	lookups   *lookup.Service
	validator *draftset.Validator
	logger    *slog.Logger
}

// WithLookupService overrides the lookup service, e.g. to point it at test
// servers.
func WithLookupService(s *lookup.Service) Option {
	return func(o *options) { o.lookups = s }
}

// WithValidator overrides the document validator. The default uses
// draftset.DefaultRules.
func WithValidator(v *draftset.Validator) Option {
	return func(o *options) { o.validator = v }
}

// WithLogger sets the logger passed down to the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New wires up a session from configuration, a provider, and an archive
// client. The registry starts with the metadata and lookup toolkits
// registered.
func New(cfg *config.Config, provider chat.Provider, archiveClient *archive.Client, opts ...Option) (*Session, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.lookups == nil {
		o.lookups = lookup.NewService()
	}
	if o.validator == nil {
		o.validator = draftset.NewValidator()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	editor := draftset.NewEditor(draftset.NewObject(), o.validator)

	registry := draftset.NewRegistry(
		draftset.WithDefaultTimeout(cfg.RequestTimeout.Duration),
		draftset.WithRecoverPanics(true),
	)
	if err := metadata.Register(registry, editor); err != nil {
		return nil, fmt.Errorf("register metadata tools: %w", err)
	}
	if err := o.lookups.Register(registry); err != nil {
		return nil, fmt.Errorf("register lookup tools: %w", err)
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	orch := chat.NewOrchestrator(provider, registry,
		chat.WithMaxToolRounds(cfg.MaxToolRounds),
		chat.WithSystemPrompt(systemPrompt),
		chat.WithModel(cfg.Provider.Model),
		chat.WithLogger(o.logger),
	)

	return &Session{
		id:        uuid.NewString(),
		validator: o.validator,
		editor:    editor,
		registry:  registry,
		orch:      orch,
		archive:   archiveClient,
		logger:    o.logger,
	}, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// LoadDocument fetches a document from the archive and makes it the session
// base. Pending changes and the conversation transcript are discarded
// together: a transcript about one document must not leak into editing
// another.
func (s *Session) LoadDocument(ctx context.Context, id, version string) error {
	doc, err := s.archive.Fetch(ctx, id, version)
	if err != nil {
		return err
	}

	if err := s.orch.Reset(); err != nil {
		return err
	}
	s.editor.SetBase(doc)

	s.mu.Lock()
	s.docID = id
	s.docVersion = version
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info("document loaded", "id", id, "version", version)
	return nil
}

// Send runs one conversation turn. onDelta may be nil.
func (s *Session) Send(ctx context.Context, text string, onDelta func(string) error) (string, error) {
	if !s.documentLoaded() {
		return "", ErrNoDocument
	}
	return s.orch.Send(ctx, text, onDelta)
}

// Commit folds pending changes into the effective document, runs a final
// validation, and writes the result to the archive. On success the freshly
// committed canonical copy is fetched back and becomes the new base, and the
// changeset is cleared. The transcript survives a commit.
func (s *Session) Commit(ctx context.Context) error {
	if !s.documentLoaded() {
		return ErrNoDocument
	}
	if s.editor.Len() == 0 {
		return ErrNothingToCommit
	}

	effective, err := s.editor.Effective()
	if err != nil {
		return fmt.Errorf("fold pending changes: %w", err)
	}

	if result := s.validator.Validate(effective); !result.Valid {
		return fmt.Errorf("document is not valid for commit: %d problem(s), first: %s %s",
			len(result.Errors), result.Errors[0].Path, result.Errors[0].Message)
	}

	s.mu.Lock()
	id, version := s.docID, s.docVersion
	s.mu.Unlock()

	if err := s.archive.Commit(ctx, id, version, effective); err != nil {
		return err
	}

	// Re-fetch so the new base is the archive's canonical form, not our
	// local fold of it.
	canonical, err := s.archive.Fetch(ctx, id, version)
	if err != nil {
		return fmt.Errorf("refetch after commit: %w", err)
	}
	s.editor.SetBase(canonical)

	s.logger.Info("document committed", "id", id, "version", version)
	return nil
}

// Reset discards pending changes and the transcript but keeps the loaded
// base document.
func (s *Session) Reset() error {
	if err := s.orch.Reset(); err != nil {
		return err
	}
	s.editor.Clear()
	return nil
}

// Close shuts the tool registry down, waiting for in-flight executions.
func (s *Session) Close(ctx context.Context) error {
	return s.registry.Shutdown(ctx)
}

// Changes returns the pending changes in proposal order.
func (s *Session) Changes() []draftset.PendingChange {
	return s.editor.Changes()
}

// Effective returns the draft with all pending changes applied.
func (s *Session) Effective() (draftset.Value, error) {
	return s.editor.Effective()
}

// Transcript returns a snapshot of the conversation so far.
func (s *Session) Transcript() []chat.Message {
	return s.orch.Transcript()
}

// Snapshot captures the session for persistence with a Store.
func (s *Session) Snapshot() *Snapshot {
	id, version, _ := s.Document()
	return &Snapshot{
		ID:              s.id,
		DocumentID:      id,
		DocumentVersion: version,
		Messages:        s.orch.Transcript(),
	}
}

// Resume reloads the snapshot's document from the archive and restores its
// transcript. Pending changes are not part of snapshots, so the resumed
// session starts with a clean changeset.
func (s *Session) Resume(ctx context.Context, snap *Snapshot) error {
	if err := s.LoadDocument(ctx, snap.DocumentID, snap.DocumentVersion); err != nil {
		return err
	}
	if err := s.orch.Restore(snap.Messages); err != nil {
		return err
	}
	s.id = snap.ID
	return nil
}

// Document returns the id and version of the loaded document, with ok false
// when nothing is loaded.
func (s *Session) Document() (id, version string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docID, s.docVersion, s.loaded
}

func (s *Session) documentLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}
