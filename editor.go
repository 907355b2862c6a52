package draftset

import (
	"sync"
)

// ProposeOutcome is the structured result of an edit proposal. It is what a
// proposal tool serializes back to the assistant: on rejection, Error and
// Hint explain the problem and Errors carries the field-level validation
// failures so the assistant can correct itself without another read.
type ProposeOutcome struct {
	Success bool              `json:"success"`
	Error   string            `json:"error,omitempty"`
	Hint    string            `json:"hint,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// Editor is the admission gate in front of a ChangeSet. Every proposal is
// applied speculatively, the resulting candidate document is validated, and
// only a valid candidate is staged. An invalid proposal leaves the set
// exactly as it was.
//
// Editor methods are safe for concurrent use; the tools that drive one
// editing session still execute sequentially, so proposals are admitted in
// emission order.
type Editor struct {
	mu        sync.Mutex
	base      Value
	changes   *ChangeSet
	validator *Validator
}

// NewEditor returns an Editor over base. A nil validator admits every
// structurally applicable proposal.
func NewEditor(base Value, validator *Validator) *Editor {
	return &Editor{
		base:      base,
		changes:   NewChangeSet(),
		validator: validator,
	}
}

// ProposeChange stages newValue at the given path expression if the resulting
// document passes validation. The returned outcome is always non-error JSON
// material; path syntax problems and validation failures are reported in it,
// not as Go errors, so they reach the assistant for self-correction.
func (e *Editor) ProposeChange(pathExpr string, newValue Value) ProposeOutcome {
	return e.propose(pathExpr, newValue, true)
}

// ProposeRemove stages a deletion at the given path expression, gated the
// same way as ProposeChange.
func (e *Editor) ProposeRemove(pathExpr string) ProposeOutcome {
	return e.propose(pathExpr, nil, false)
}

func (e *Editor) propose(pathExpr string, newValue Value, hasNew bool) ProposeOutcome {
	path, err := ParsePath(pathExpr)
	if err != nil {
		return outcomeFromError(wrapPathError(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	prior, hadPrior := e.changes.Find(path)

	var stageErr error
	if hasNew {
		stageErr = e.changes.Propose(e.base, path, newValue)
	} else {
		stageErr = e.changes.ProposeRemove(e.base, path)
	}
	if stageErr != nil {
		return outcomeFromError(wrapPathError(stageErr))
	}

	candidate, err := e.changes.Effective(e.base)
	if err != nil {
		e.rollback(path, prior, hadPrior)
		return outcomeFromError(wrapPathError(err))
	}

	if e.validator != nil {
		if res := e.validator.Validate(candidate); !res.Valid {
			e.rollback(path, prior, hadPrior)
			return ProposeOutcome{
				Error:  "proposal rejected: the document would become invalid",
				Hint:   "fix the listed fields and propose again",
				Errors: res.Errors,
			}
		}
	}
	return ProposeOutcome{Success: true}
}

// rollback undoes the speculative stage for path. A re-proposed entry had
// only its NewValue replaced in place, so restoring it keeps its original
// position in the set. Caller holds e.mu.
func (e *Editor) rollback(path Path, prior PendingChange, hadPrior bool) {
	if !hadPrior {
		e.changes.Revert(path)
		return
	}
	if entry, ok := e.changes.byPath[path.String()]; ok {
		entry.NewValue = prior.NewValue
		entry.HasNew = prior.HasNew
	}
}

// RevertChange drops the staged edit at the given path expression. It
// reports false when nothing was staged there; a malformed path is an error.
func (e *Editor) RevertChange(pathExpr string) (bool, error) {
	path, err := ParsePath(pathExpr)
	if err != nil {
		return false, wrapPathError(err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changes.Revert(path), nil
}

// Effective returns the document as the user currently sees it: base with
// every pending change folded in. The base document itself is never mutated.
func (e *Editor) Effective() (Value, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changes.Effective(e.base)
}

// Changes returns the staged edits in proposal order.
func (e *Editor) Changes() []PendingChange {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changes.Changes()
}

// Len reports the number of staged edits.
func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.changes.Len()
}

// Base returns the document the pending edits are layered over.
func (e *Editor) Base() Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base
}

// SetBase replaces the base document and discards all pending edits. Used
// when a different document (or a freshly committed version) is loaded.
func (e *Editor) SetBase(base Value) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.base = base
	e.changes.Clear()
}

// Clear discards all pending edits, keeping the base.
func (e *Editor) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes.Clear()
}

// outcomeFromError maps a gate error onto a ProposeOutcome. ClientErrors
// carry their reason and hint through; anything else gets a generic message
// so internals never leak into the transcript.
func outcomeFromError(err error) ProposeOutcome {
	if ce, ok := err.(*ClientError); ok {
		return ProposeOutcome{Error: ce.Reason, Hint: ce.Hint}
	}
	return ProposeOutcome{Error: "proposal could not be applied"}
}
