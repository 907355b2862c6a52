package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skosovsky/draftset/chat"
)

// Snapshot is the persisted form of a session: which document it was editing
// and the conversation so far. Pending changes are not persisted; a restored
// session starts from a clean changeset against the archive copy.
type Snapshot struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"document_id"`
	DocumentVersion string         `json:"document_version"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Messages        []chat.Message `json:"messages"`
}

// Store persists session snapshots as JSON files, one per session.
type Store struct {
	dir string
}

// NewStore creates the storage directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save writes a snapshot to disk, stamping UpdatedAt and filling in ID and
// CreatedAt when empty.
func (st *Store) Save(snap *Snapshot) error {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = now
	}
	snap.UpdatedAt = now

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.WriteFile(st.path(snap.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Load reads one snapshot by id.
func (st *Store) Load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(st.path(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &snap, nil
}

// List returns all stored snapshots, newest first. Files that fail to parse
// are skipped rather than failing the whole listing.
func (st *Store) List() ([]*Snapshot, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var snaps []*Snapshot
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		snap, err := st.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].UpdatedAt.After(snaps[j].UpdatedAt)
	})
	return snaps, nil
}

// Delete removes a stored snapshot. Deleting a missing snapshot is not an
// error.
func (st *Store) Delete(id string) error {
	if err := os.Remove(st.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

func (st *Store) path(id string) string {
	return filepath.Join(st.dir, id+".json")
}
