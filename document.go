package draftset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is one node of a metadata document: *Object, Array, string, float64,
// bool, or nil. Resolver and changeset operations type-switch on these five
// shapes; anything else is a caller bug and surfaces as a type conflict.
type Value = any

// Object is a string-keyed container that preserves insertion order, so a
// document round-trips through JSON with its fields in the original order.
type Object = orderedmap.OrderedMap[string, Value]

// Array is an index-ordered container.
type Array = []Value

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return orderedmap.New[string, Value]()
}

// UnmarshalValue decodes JSON into a Value tree. Objects decode to *Object
// with key order preserved, arrays to Array, numbers to float64.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after document")
	}
	return v, nil
}

// MarshalValue encodes a Value tree to JSON. Object keys are written in
// insertion order.
func MarshalValue(v Value) ([]byte, error) {
	return json.Marshal(v)
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := Array{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	case string, float64, bool, nil:
		return t, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// CloneValue returns a deep copy of v. Snapshots stored in a changeset are
// cloned so later edits to the live tree cannot leak into them.
func CloneValue(v Value) Value {
	switch t := v.(type) {
	case *Object:
		out := NewObject()
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			out.Set(pair.Key, CloneValue(pair.Value))
		}
		return out
	case Array:
		out := make(Array, len(t))
		for i, item := range t {
			out[i] = CloneValue(item)
		}
		return out
	default:
		return t
	}
}

// EqualValues reports deep, order-sensitive equality of two Value trees.
func EqualValues(a, b Value) bool {
	switch ta := a.(type) {
	case *Object:
		tb, ok := b.(*Object)
		if !ok || ta.Len() != tb.Len() {
			return false
		}
		pb := tb.Oldest()
		for pa := ta.Oldest(); pa != nil; pa = pa.Next() {
			if pb == nil || pa.Key != pb.Key || !EqualValues(pa.Value, pb.Value) {
				return false
			}
			pb = pb.Next()
		}
		return true
	case Array:
		tb, ok := b.(Array)
		if !ok || len(ta) != len(tb) {
			return false
		}
		for i := range ta {
			if !EqualValues(ta[i], tb[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

// cloneObjectShallow copies the object's own entries; values are shared.
func cloneObjectShallow(obj *Object) *Object {
	out := NewObject()
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}
