package draftset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePath(t *testing.T) {
	p, err := ParsePath("contributor.1.name")
	require.NoError(t, err)
	require.Len(t, p, 3)
	assert.Equal(t, Segment{Key: "contributor"}, p[0])
	assert.Equal(t, Segment{Index: 1, IsIndex: true}, p[1])
	assert.Equal(t, Segment{Key: "name"}, p[2])
	assert.Equal(t, "contributor.1.name", p.String())
}

func TestParsePath_Rejects(t *testing.T) {
	for _, expr := range []string{"", ".", "a..b", ".name", "name."} {
		_, err := ParsePath(expr)
		require.Error(t, err, "expr %q", expr)
		assert.ErrorIs(t, err, ErrMalformedPath, "expr %q", expr)
	}
}

func TestParsePath_NumericLookalikes(t *testing.T) {
	// Only plain decimal digits become indices; signs make a field name.
	p, err := ParsePath("a.-1.+2.03")
	require.NoError(t, err)
	assert.Equal(t, Segment{Key: "-1"}, p[1])
	assert.Equal(t, Segment{Key: "+2"}, p[2])
	assert.True(t, p[3].IsIndex)
	assert.Equal(t, 3, p[3].Index)

	p, err = ParsePath("a.-0")
	require.NoError(t, err)
	assert.Equal(t, Segment{Key: "-0"}, p[1])

	_, err = ParsePath("a.99999999999999999999")
	require.ErrorIs(t, err, ErrMalformedPath)
}

func TestPath_Equal(t *testing.T) {
	a, _ := ParsePath("x.0.y")
	b, _ := ParsePath("x.0.y")
	c, _ := ParsePath("x.1.y")
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(a[:2]))
}

func TestGet(t *testing.T) {
	doc := mustParse(t, `{"name": "Alpha", "contributor": [{"name": "x"}, {"name": "y"}], "meta": null}`)

	v, ok := Get(doc, mustPath(t, "name"))
	require.True(t, ok)
	assert.Equal(t, "Alpha", v)

	v, ok = Get(doc, mustPath(t, "contributor.1.name"))
	require.True(t, ok)
	assert.Equal(t, "y", v)

	// explicit null is present
	v, ok = Get(doc, mustPath(t, "meta"))
	require.True(t, ok)
	assert.Nil(t, v)

	_, ok = Get(doc, mustPath(t, "missing"))
	assert.False(t, ok)
	_, ok = Get(doc, mustPath(t, "contributor.5"))
	assert.False(t, ok)
	_, ok = Get(doc, mustPath(t, "name.deeper"))
	assert.False(t, ok)
}

func mustPath(t *testing.T, expr string) Path {
	t.Helper()
	p, err := ParsePath(expr)
	require.NoError(t, err)
	return p
}

func TestSet_DoesNotMutateInput(t *testing.T) {
	doc := mustParse(t, `{"name": "Alpha", "keywords": ["a", "b"]}`)
	snapshot := CloneValue(doc)

	out, err := Set(doc, mustPath(t, "name"), "Beta")
	require.NoError(t, err)
	require.True(t, EqualValues(snapshot, doc), "input document changed")

	v, ok := Get(out, mustPath(t, "name"))
	require.True(t, ok)
	assert.Equal(t, "Beta", v)
}

func TestSet_SharesUntouchedSubtrees(t *testing.T) {
	doc := mustParse(t, `{"a": {"deep": [1, 2]}, "b": {"other": true}}`)
	out, err := Set(doc, mustPath(t, "a.deep.0"), float64(9))
	require.NoError(t, err)

	inB, _ := Get(doc, mustPath(t, "b"))
	outB, _ := Get(out, mustPath(t, "b"))
	assert.Same(t, inB.(*Object), outB.(*Object), "untouched sibling should be shared")
}

func TestSet_CreatesIntermediates(t *testing.T) {
	doc := mustParse(t, `{}`)

	out, err := Set(doc, mustPath(t, "meta.created.by"), "me")
	require.NoError(t, err)
	v, ok := Get(out, mustPath(t, "meta.created.by"))
	require.True(t, ok)
	assert.Equal(t, "me", v)

	// next segment is an index, so the intermediate is an array padded with nulls
	out, err = Set(doc, mustPath(t, "tags.2"), "third")
	require.NoError(t, err)
	tags, ok := Get(out, mustPath(t, "tags"))
	require.True(t, ok)
	require.Equal(t, Array{nil, nil, "third"}, tags)
}

func TestSet_OverwritesNullIntermediate(t *testing.T) {
	doc := mustParse(t, `{"meta": null}`)
	out, err := Set(doc, mustPath(t, "meta.by"), "me")
	require.NoError(t, err)
	v, ok := Get(out, mustPath(t, "meta.by"))
	require.True(t, ok)
	assert.Equal(t, "me", v)
}

func TestSet_TypeConflict(t *testing.T) {
	doc := mustParse(t, `{"name": "Alpha", "tags": ["a"]}`)

	_, err := Set(doc, mustPath(t, "name.deeper"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathTypeConflict)

	_, err = Set(doc, mustPath(t, "tags.key"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathTypeConflict)

	_, err = Set(doc, mustPath(t, "0"), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathTypeConflict)
}

func TestSet_IdempotentWrite(t *testing.T) {
	doc := mustParse(t, `{"name": "Alpha"}`)
	once, err := Set(doc, mustPath(t, "name"), "Beta")
	require.NoError(t, err)
	twice, err := Set(once, mustPath(t, "name"), "Beta")
	require.NoError(t, err)
	assert.True(t, EqualValues(once, twice))
}

func TestRemove_ObjectField(t *testing.T) {
	doc := mustParse(t, `{"name": "Alpha", "license": "MIT"}`)
	snapshot := CloneValue(doc)

	out, err := Remove(doc, mustPath(t, "license"))
	require.NoError(t, err)
	_, ok := Get(out, mustPath(t, "license"))
	assert.False(t, ok)
	assert.True(t, EqualValues(snapshot, doc), "input document changed")
}

func TestRemove_ArraySlotKeepsLength(t *testing.T) {
	doc := mustParse(t, `{"contributor": [{"name": "x"}, {"name": "y"}]}`)
	out, err := Remove(doc, mustPath(t, "contributor.0"))
	require.NoError(t, err)

	arr, ok := Get(out, mustPath(t, "contributor"))
	require.True(t, ok)
	require.Len(t, arr.(Array), 2)
	assert.Nil(t, arr.(Array)[0])

	// paths into later siblings still resolve
	v, ok := Get(out, mustPath(t, "contributor.1.name"))
	require.True(t, ok)
	assert.Equal(t, "y", v)
}

func TestRemove_MissingIsNoop(t *testing.T) {
	doc := mustParse(t, `{"name": "Alpha"}`)
	out, err := Remove(doc, mustPath(t, "missing.deep"))
	require.NoError(t, err)
	assert.True(t, EqualValues(doc, out))

	out, err = Remove(doc, mustPath(t, "name.deeper.0"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPathTypeConflict)
	assert.Nil(t, out)
}
