// Package metadata provides the built-in draft editing tools: propose_change,
// revert_change, list_changes, and read_field. All four operate on a shared
// Editor, so an assistant wired to a registry with these tools can stage,
// inspect, and undo edits against the current draft.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skosovsky/draftset"
)

// Register builds the draft editing tools bound to ed and registers them on
// reg. The mutating tools are marked as such so hooks and middleware can
// treat them differently from the read-only ones.
func Register(reg *draftset.Registry, ed *draftset.Editor) error {
	proposeChange, err := newProposeChangeTool(ed)
	if err != nil {
		return fmt.Errorf("build propose_change: %w", err)
	}

	revertChange, err := draftset.NewTool(
		"revert_change",
		"Discard the pending change at the given path. The field returns to its value in the base document.",
		func(_ context.Context, args pathArgs) (revertResult, error) {
			reverted, err := ed.RevertChange(args.Path)
			if err != nil {
				return revertResult{}, err
			}
			return revertResult{Success: true, Reverted: reverted}, nil
		},
		draftset.WithMutating(),
	)
	if err != nil {
		return fmt.Errorf("build revert_change: %w", err)
	}

	listChanges, err := draftset.NewTool(
		"list_changes",
		"List all pending changes in proposal order, with old and new values.",
		func(_ context.Context, _ struct{}) (listResult, error) {
			changes := ed.Changes()
			out := make([]changeEntry, len(changes))
			for i, ch := range changes {
				out[i] = toChangeEntry(ch)
			}
			return listResult{Success: true, Count: len(out), Changes: out}, nil
		},
	)
	if err != nil {
		return fmt.Errorf("build list_changes: %w", err)
	}

	readField, err := draftset.NewTool(
		"read_field",
		"Read the value at a path in the draft as it would look with all pending changes applied.",
		func(_ context.Context, args pathArgs) (readResult, error) {
			path, err := draftset.ParsePath(args.Path)
			if err != nil {
				return readResult{}, pathClientError(err)
			}
			effective, err := ed.Effective()
			if err != nil {
				return readResult{}, &draftset.SystemError{Err: err}
			}
			value, found := draftset.Get(effective, path)
			return readResult{Success: true, Found: found, Value: value}, nil
		},
	)
	if err != nil {
		return fmt.Errorf("build read_field: %w", err)
	}

	reg.Register(proposeChange)
	reg.Register(revertChange)
	reg.Register(listChanges)
	reg.Register(readField)
	return nil
}

type pathArgs struct {
	Path string `json:"path" description:"Dot-separated path, e.g. contributor.0.name"`
}

type revertResult struct {
	Success  bool `json:"success"`
	Reverted bool `json:"reverted"`
}

type changeEntry struct {
	Path     string         `json:"path"`
	OldValue draftset.Value `json:"oldValue"`
	NewValue draftset.Value `json:"newValue"`
	Removal  bool           `json:"removal"`
}

type listResult struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Changes []changeEntry `json:"changes"`
}

type readResult struct {
	Success bool           `json:"success"`
	Found   bool           `json:"found"`
	Value   draftset.Value `json:"value"`
}

// newProposeChangeTool needs a dynamic schema: the value property accepts any
// JSON type, and an omitted value means removal. Neither is expressible as a
// typed argument struct.
func newProposeChangeTool(ed *draftset.Editor) (draftset.Tool, error) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Dot-separated path to the field, e.g. contributor.0.name",
			},
			"value": map[string]any{
				"description": "New value for the field, any JSON type. Omit to remove the field.",
			},
		},
		"required": []any{"path"},
	}

	return draftset.NewDynamicTool(
		"propose_change",
		"Stage an edit to the draft. The change is validated against the whole document and rejected with errors if it would make the draft invalid.",
		schema,
		func(_ context.Context, argsJSON []byte) ([]byte, error) {
			var raw map[string]json.RawMessage
			if err := json.Unmarshal(argsJSON, &raw); err != nil {
				return nil, &draftset.ClientError{Reason: "json parse error: " + err.Error()}
			}

			var path string
			if err := json.Unmarshal(raw["path"], &path); err != nil {
				return nil, &draftset.ClientError{Reason: "path must be a string"}
			}

			var outcome draftset.ProposeOutcome
			if valueRaw, ok := raw["value"]; ok {
				value, err := draftset.UnmarshalValue(valueRaw)
				if err != nil {
					return nil, &draftset.ClientError{Reason: "value is not valid JSON: " + err.Error()}
				}
				outcome = ed.ProposeChange(path, value)
			} else {
				outcome = ed.ProposeRemove(path)
			}

			return json.Marshal(outcome)
		},
		draftset.WithMutating(),
	)
}

func toChangeEntry(ch draftset.PendingChange) changeEntry {
	entry := changeEntry{
		Path:    ch.Path.String(),
		Removal: !ch.HasNew,
	}
	if ch.HasOld {
		entry.OldValue = ch.OldValue
	}
	if ch.HasNew {
		entry.NewValue = ch.NewValue
	}
	return entry
}

func pathClientError(err error) error {
	return &draftset.ClientError{
		Reason: err.Error(),
		Hint:   "paths are dot-separated field names and array indices, e.g. contributor.0.name",
		Err:    draftset.ErrMalformedPath,
	}
}
