package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/pkg/value"
)

func TestOrderedMapPreservesInsertionOrder(t *testing.T) {
	m := value.MapOf(
		value.Keyword("b"), value.Int(2),
		value.Keyword("a"), value.Int(1),
		value.Keyword("c"), value.Int(3),
	)
	keys := m.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, "b", keys[0].Str)
	assert.Equal(t, "a", keys[1].Str)
	assert.Equal(t, "c", keys[2].Str)

	// Overwriting keeps the key's original position.
	m.Set(value.Keyword("b"), value.Int(20))
	assert.Equal(t, "b", m.Keys()[0].Str)
	v, _ := m.Get(value.Keyword("b"))
	assert.Equal(t, value.Int(20), v)
}

func TestGetFlexCoercesStringAndKeyword(t *testing.T) {
	m := value.MapOf(value.Keyword("k"), value.Int(1))
	v, ok := m.GetFlex(value.String("k"))
	require.True(t, ok)
	assert.Equal(t, value.Int(1), v)

	// The literal form wins over the coerced one.
	m.Set(value.String("k"), value.Int(2))
	v, _ = m.GetFlex(value.String("k"))
	assert.Equal(t, value.Int(2), v)
	v, _ = m.GetFlex(value.Keyword("k"))
	assert.Equal(t, value.Int(1), v)
}

func TestStringAndKeywordKeysStayDistinct(t *testing.T) {
	a := value.MapOf(value.Keyword("k"), value.Int(1))
	b := value.MapOf(value.String("k"), value.Int(1))
	assert.False(t, a.Equal(b))
}

func TestSetOperations(t *testing.T) {
	a := value.SetOf(value.Int(1), value.Int(2), value.Int(3))
	b := value.SetOf(value.Int(2), value.Int(3), value.Int(4))

	assert.Equal(t, 4, value.Union(a, b).Len())
	assert.Equal(t, 2, value.Intersection(a, b).Len())

	d := value.Difference(a, b)
	assert.Equal(t, 1, d.Len())
	assert.True(t, d.Contains(value.Int(1)))
}
