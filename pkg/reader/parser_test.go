package reader_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/reader"
)

func parseSingle(t *testing.T, src string) reader.Raw {
	t.Helper()
	forms, err := reader.ParseAll(src)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	return forms[0]
}

func TestParseAtoms(t *testing.T) {
	cases := []struct {
		src  string
		kind reader.AtomKind
	}{
		{"nil", reader.AtomNil},
		{"true", reader.AtomBool},
		{"false", reader.AtomBool},
		{"42", reader.AtomInt},
		{"-7", reader.AtomInt},
		{"3.14", reader.AtomFloat},
		{"\"hi\"", reader.AtomString},
		{":kw", reader.AtomKeyword},
		{"sym", reader.AtomSymbol},
	}
	for _, c := range cases {
		form := parseSingle(t, c.src)
		assert.Equal(t, reader.RawAtom, form.Kind, c.src)
		assert.Equal(t, c.kind, form.Atom.Kind, c.src)
	}
}

func TestParseNumberDistinguishesIntFromFloat(t *testing.T) {
	i := parseSingle(t, "10")
	assert.Equal(t, reader.AtomInt, i.Atom.Kind)
	assert.Equal(t, int64(10), i.Atom.Int)

	f := parseSingle(t, "10.0")
	assert.Equal(t, reader.AtomFloat, f.Atom.Kind)
	assert.InDelta(t, 10.0, f.Atom.Float, 0)

	e := parseSingle(t, "1e3")
	assert.Equal(t, reader.AtomFloat, e.Atom.Kind)
	assert.InDelta(t, 1000.0, e.Atom.Float, 0)
}

func TestParseCollections(t *testing.T) {
	list := parseSingle(t, "(+ 1 2)")
	require.Equal(t, reader.RawList, list.Kind)
	require.Len(t, list.Items, 3)
	assert.Equal(t, "+", list.Items[0].Atom.Text)

	vec := parseSingle(t, "[1 2 3]")
	require.Equal(t, reader.RawVector, vec.Kind)
	assert.Len(t, vec.Items, 3)

	m := parseSingle(t, "{:a 1 :b 2}")
	require.Equal(t, reader.RawMap, m.Kind)
	assert.Len(t, m.Items, 4)

	set := parseSingle(t, "#{1 2 3}")
	require.Equal(t, reader.RawSet, set.Kind)
	assert.Len(t, set.Items, 3)
}

func TestParseQuote(t *testing.T) {
	form := parseSingle(t, "'(a b)")
	require.Equal(t, reader.RawQuote, form.Kind)
	require.Len(t, form.Items, 1)
	assert.Equal(t, reader.RawList, form.Items[0].Kind)
}

func TestParseNestedCollections(t *testing.T) {
	form := parseSingle(t, "[[1 2] {:a #{3}}]")
	require.Equal(t, reader.RawVector, form.Kind)
	require.Len(t, form.Items, 2)
	assert.Equal(t, reader.RawVector, form.Items[0].Kind)
	assert.Equal(t, reader.RawMap, form.Items[1].Kind)
}

// TestDiscardTopLevelSimple exercises spec.md §4.1's reader-macro discard:
// `#_a b` drops `a`, keeping only `b`.
func TestDiscardTopLevelSimple(t *testing.T) {
	forms, err := reader.ParseAll("#_a b")
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "b", forms[0].Atom.Text)
}

// TestDiscardNested is the spec's own worked example (§4.1, §8 property 10):
// `#_#_a b c` discards both `a` (consumed as the inner #_'s target) and `b`
// (consumed as the outer #_'s target), leaving only `c`.
func TestDiscardNested(t *testing.T) {
	forms, err := reader.ParseAll("#_#_a b c")
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "c", forms[0].Atom.Text)
}

func TestDiscardInsideList(t *testing.T) {
	form := parseSingle(t, "(a #_b c)")
	require.Equal(t, reader.RawList, form.Kind)
	require.Len(t, form.Items, 2)
	assert.Equal(t, "a", form.Items[0].Atom.Text)
	assert.Equal(t, "c", form.Items[1].Atom.Text)
}

func TestDiscardInsideVector(t *testing.T) {
	form := parseSingle(t, "[1 #_2 3]")
	require.Equal(t, reader.RawVector, form.Kind)
	require.Len(t, form.Items, 2)
	assert.Equal(t, int64(1), form.Items[0].Atom.Int)
	assert.Equal(t, int64(3), form.Items[1].Atom.Int)
}

func TestDiscardAsLastElement(t *testing.T) {
	form := parseSingle(t, "(a #_b)")
	require.Equal(t, reader.RawList, form.Kind)
	require.Len(t, form.Items, 1)
	assert.Equal(t, "a", form.Items[0].Atom.Text)

	forms, err := reader.ParseAll("a #_b")
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, "a", forms[0].Atom.Text)
}

func TestDiscardOnQuotedForm(t *testing.T) {
	forms, err := reader.ParseAll("'#_a b")
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, reader.RawQuote, forms[0].Kind)
	assert.Equal(t, "b", forms[0].Items[0].Atom.Text)
}

func TestUnbalancedDelimitersError(t *testing.T) {
	_, err := reader.ParseAll("(a b")
	require.Error(t, err)
	assert.Equal(t, errs.KindParseError, errs.KindOf(err))

	_, err = reader.ParseAll("a b)")
	require.Error(t, err)
	assert.Equal(t, errs.KindParseError, errs.KindOf(err))
}

func TestUnterminatedStringErrors(t *testing.T) {
	_, err := reader.ParseAll(`"unterminated`)
	require.Error(t, err)
	assert.Equal(t, errs.KindParseError, errs.KindOf(err))
}

func TestTrailingDiscardAtEOFErrors(t *testing.T) {
	_, err := reader.ParseAll("a #_")
	require.Error(t, err)
	assert.Equal(t, errs.KindParseError, errs.KindOf(err))
}

func TestMultipleTopLevelForms(t *testing.T) {
	forms, err := reader.ParseAll("(def a 1) (def b 2)")
	require.NoError(t, err)
	require.Len(t, forms, 2)
}

func TestSanitizeStripsBOMAndZeroWidth(t *testing.T) {
	src := "\ufeff(a\u200b b)"
	forms, err := reader.ParseAll(src)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	require.Len(t, forms[0].Items, 2)
}

func TestSanitizeNormalizesSmartQuotes(t *testing.T) {
	src := "\u201chello\u201d"
	form := parseSingle(t, src)
	assert.Equal(t, reader.AtomString, form.Atom.Kind)
	assert.Equal(t, "hello", form.Atom.Text)
}
