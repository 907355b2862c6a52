package draftset

// PendingChange is one staged edit. HasOld is false when the change creates a
// field that did not exist; HasNew is false when the change deletes one.
// OldValue is captured at the first proposal for the path and never updated,
// so reverting always returns to the pre-session value.
type PendingChange struct {
	Path     Path
	OldValue Value
	HasOld   bool
	NewValue Value
	HasNew   bool
}

// ChangeSet is the ordered collection of pending edits for one editing
// session. Insertion order is display order and application order. At most
// one entry exists per distinct path; re-proposing a path replaces only its
// NewValue.
//
// A ChangeSet never mutates the base document: Effective folds the entries
// into a structurally shared copy on demand.
type ChangeSet struct {
	entries []*PendingChange
	byPath  map[string]*PendingChange
}

// NewChangeSet returns an empty ChangeSet.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{byPath: make(map[string]*PendingChange)}
}

// Propose stages newValue at path. For a path already staged, only NewValue
// is replaced; otherwise the current value is read from the effective
// document (so edits layered on earlier edits snapshot what the user
// currently sees) and recorded as the sticky OldValue.
//
// Propose performs no validation; the admission gate lives in Editor.
func (cs *ChangeSet) Propose(base Value, path Path, newValue Value) error {
	return cs.propose(base, path, CloneValue(newValue), true)
}

// ProposeRemove stages a deletion at path.
func (cs *ChangeSet) ProposeRemove(base Value, path Path) error {
	return cs.propose(base, path, nil, false)
}

func (cs *ChangeSet) propose(base Value, path Path, newValue Value, hasNew bool) error {
	key := path.String()
	if entry, ok := cs.byPath[key]; ok {
		entry.NewValue = newValue
		entry.HasNew = hasNew
		return nil
	}
	eff, err := cs.Effective(base)
	if err != nil {
		return err
	}
	old, exists := Get(eff, path)
	entry := &PendingChange{
		Path:     path,
		OldValue: CloneValue(old),
		HasOld:   exists,
		NewValue: newValue,
		HasNew:   hasNew,
	}
	cs.entries = append(cs.entries, entry)
	cs.byPath[key] = entry
	return nil
}

// Revert drops the entry for path. Returns false when nothing was staged there.
func (cs *ChangeSet) Revert(path Path) bool {
	key := path.String()
	entry, ok := cs.byPath[key]
	if !ok {
		return false
	}
	delete(cs.byPath, key)
	for i, e := range cs.entries {
		if e == entry {
			cs.entries = append(cs.entries[:i], cs.entries[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties the set.
func (cs *ChangeSet) Clear() {
	cs.entries = nil
	cs.byPath = make(map[string]*PendingChange)
}

// Effective folds all entries, in insertion order, over base and returns the
// document as if every pending change were committed. It is pure: base is
// never mutated, the result is re-derived on every call, and folding twice
// over the same base yields equal documents.
func (cs *ChangeSet) Effective(base Value) (Value, error) {
	doc := base
	var err error
	for _, entry := range cs.entries {
		if entry.HasNew {
			doc, err = Set(doc, entry.Path, entry.NewValue)
		} else {
			doc, err = Remove(doc, entry.Path)
		}
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Find returns a copy of the entry for path, for inline diff display.
func (cs *ChangeSet) Find(path Path) (PendingChange, bool) {
	entry, ok := cs.byPath[path.String()]
	if !ok {
		return PendingChange{}, false
	}
	return *entry, true
}

// Changes returns the entries in insertion order. The slice and its elements
// are copies; mutating them does not affect the set.
func (cs *ChangeSet) Changes() []PendingChange {
	out := make([]PendingChange, len(cs.entries))
	for i, entry := range cs.entries {
		out[i] = *entry
	}
	return out
}

// Len reports the number of staged edits.
func (cs *ChangeSet) Len() int {
	return len(cs.entries)
}
