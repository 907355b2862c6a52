package draftset

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is one step of a Path: either an object field name or an array
// index. IsIndex discriminates.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path addresses one location in a document. Two paths are equal iff their
// segment sequences are equal.
type Path []Segment

// ParsePath parses a dot-separated path expression such as "contributor.1.name".
// A segment of decimal digits is an array index, anything else a field name.
// Empty input and empty segments (including field names containing literal
// dots, which have no escape syntax) are rejected with ErrMalformedPath.
func ParsePath(text string) (Path, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}
	parts := strings.Split(text, ".")
	path := make(Path, 0, len(parts))
	for i, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: empty segment at position %d in %q", ErrMalformedPath, i, text)
		}
		if isIndexSegment(part) {
			idx, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("%w: index %s out of range in %q", ErrMalformedPath, part, text)
			}
			path = append(path, Segment{Index: idx, IsIndex: true})
			continue
		}
		path = append(path, Segment{Key: part})
	}
	return path, nil
}

// isIndexSegment reports whether part is an array index segment: one or more
// ASCII digits and nothing else. Signed forms like "-0" or "+1" are field
// names.
func isIndexSegment(part string) bool {
	for i := 0; i < len(part); i++ {
		if part[i] < '0' || part[i] > '9' {
			return false
		}
	}
	return len(part) > 0
}

// String renders the path back to its dot-separated form.
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		if seg.IsIndex {
			b.WriteString(strconv.Itoa(seg.Index))
		} else {
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// Equal reports whether two paths address the same location.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Get descends doc segment by segment. The second return is false when the
// path runs off the document (missing field, index out of bounds, or a
// non-container in the middle). Absence is a normal answer, not an error.
func Get(doc Value, path Path) (Value, bool) {
	cur := doc
	for _, seg := range path {
		if seg.IsIndex {
			arr, ok := cur.(Array)
			if !ok || seg.Index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.Index]
			continue
		}
		obj, ok := cur.(*Object)
		if !ok {
			return nil, false
		}
		val, present := obj.Get(seg.Key)
		if !present {
			return nil, false
		}
		cur = val
	}
	return cur, true
}

// Set returns a new document with val written at path. Containers along the
// path are shallow-copied; untouched siblings are shared with the input, so a
// Set is cheap and never mutates doc. Missing intermediates are created as
// objects, or arrays when the next segment is an index; arrays are padded
// with nulls when the index is past the end. An existing intermediate of the
// wrong container kind fails with ErrPathTypeConflict. A JSON null in the
// middle of the path is treated as absent and overwritten by a fresh container.
func Set(doc Value, path Path, val Value) (Value, error) {
	if len(path) == 0 {
		return val, nil
	}
	seg := path[0]
	if seg.IsIndex {
		arr, ok := doc.(Array)
		if doc != nil && !ok {
			return nil, fmt.Errorf("%w: segment %q expects an array", ErrPathTypeConflict, path.String())
		}
		out := make(Array, len(arr))
		copy(out, arr)
		for len(out) <= seg.Index {
			out = append(out, nil)
		}
		child, err := Set(out[seg.Index], path[1:], val)
		if err != nil {
			return nil, err
		}
		out[seg.Index] = child
		return out, nil
	}
	obj, ok := doc.(*Object)
	if doc != nil && !ok {
		return nil, fmt.Errorf("%w: segment %q expects an object", ErrPathTypeConflict, path.String())
	}
	var out *Object
	if obj != nil {
		out = cloneObjectShallow(obj)
	} else {
		out = NewObject()
	}
	existing, _ := out.Get(seg.Key)
	child, err := Set(existing, path[1:], val)
	if err != nil {
		return nil, err
	}
	out.Set(seg.Key, child)
	return out, nil
}

// Remove returns a new document with the terminal field deleted (objects) or
// the terminal slot set to null (arrays keep their length so paths into later
// siblings stay valid). Like Set it shallow-copies the spine and shares
// siblings. Removing a location that does not exist returns the document
// unchanged; traversing a wrong-kind container fails with ErrPathTypeConflict.
func Remove(doc Value, path Path) (Value, error) {
	if len(path) == 0 {
		return nil, nil
	}
	seg := path[0]
	if seg.IsIndex {
		arr, ok := doc.(Array)
		if doc == nil || !ok {
			if doc == nil {
				return doc, nil
			}
			return nil, fmt.Errorf("%w: segment %q expects an array", ErrPathTypeConflict, path.String())
		}
		if seg.Index >= len(arr) {
			return doc, nil
		}
		out := make(Array, len(arr))
		copy(out, arr)
		if len(path) == 1 {
			out[seg.Index] = nil
			return out, nil
		}
		child, err := Remove(out[seg.Index], path[1:])
		if err != nil {
			return nil, err
		}
		out[seg.Index] = child
		return out, nil
	}
	obj, ok := doc.(*Object)
	if doc == nil {
		return doc, nil
	}
	if !ok {
		return nil, fmt.Errorf("%w: segment %q expects an object", ErrPathTypeConflict, path.String())
	}
	if _, present := obj.Get(seg.Key); !present {
		return doc, nil
	}
	out := cloneObjectShallow(obj)
	if len(path) == 1 {
		out.Delete(seg.Key)
		return out, nil
	}
	existing, _ := out.Get(seg.Key)
	child, err := Remove(existing, path[1:])
	if err != nil {
		return nil, err
	}
	out.Set(seg.Key, child)
	return out, nil
}
