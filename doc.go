// Package draftset implements staged, validated editing of nested metadata
// documents, driven by LLM tool calls.
//
// # Overview
//
// A document loaded from the archive is never edited in place. Every edit an
// assistant (or a caller) proposes lands in a ChangeSet as a pending change:
// path, old value, new value. The Editor gates each proposal by folding it
// into a candidate document and validating the result; invalid proposals are
// rejected with field-level errors the assistant can act on, valid ones are
// staged. Commit folds the accepted set into the base document at once.
//
// Pipeline: archive document → Editor (ChangeSet + Validator) → propose /
// revert via tools → Effective preview → commit.
//
// The tool layer follows the same shape as any LLM tool engine: Go function +
// argument struct → NewTool (reflection + schema) → Tool → Registry →
// Execute (unmarshal, validate, call, marshal) → ToolResult.
//
// # Key concepts
//
//   - Staged edits: PendingChange keeps a sticky OldValue, so reverting always
//     restores the pre-session value no matter how many times a path was
//     re-proposed.
//   - Structural sharing: Set and Remove copy only the spine of the document;
//     base and effective documents share every untouched subtree.
//   - Self-correction: ClientError (and ProposeOutcome) carry readable
//     messages back to the LLM; SystemError hides internals.
//
// See Document types in document.go, Path / Get / Set / Remove for the
// resolver, ChangeSet and Editor for staging, and NewTool / NewRegistry for
// the tool engine.
//
// # Example
//
//	doc, _ := draftset.UnmarshalValue([]byte(`{"name":"Alpha","description":"d","contributor":[{"name":"x"}],"license":"MIT"}`))
//	ed := draftset.NewEditor(doc, draftset.NewValidator(draftset.DefaultRules()...))
//	out := ed.ProposeChange("name", "Beta")
//	if !out.Success { ... }
//	eff, _ := ed.Effective() // base is untouched; eff has name = "Beta"
package draftset
