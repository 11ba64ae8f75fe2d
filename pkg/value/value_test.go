package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ptc-lisp/pkg/value"
)

func TestTruthiness(t *testing.T) {
	assert.False(t, value.Nil.Truthy())
	assert.False(t, value.Bool(false).Truthy())

	// Everything else is truthy, including 0, "", and empty collections.
	for _, v := range []value.Value{
		value.Int(0),
		value.Float(0),
		value.String(""),
		value.Vector(nil),
		value.Map(value.NewOrderedMap()),
		value.Set(value.NewOrderedSet()),
	} {
		assert.True(t, v.Truthy(), value.Print(v))
	}
}

func TestEqualNumericTower(t *testing.T) {
	assert.True(t, value.Equal(value.Int(2), value.Float(2.0)))
	assert.False(t, value.Equal(value.Int(2), value.Float(2.5)))
	assert.False(t, value.Equal(value.String("k"), value.Keyword("k")))
}

func TestPrintCanonicalForms(t *testing.T) {
	cases := map[string]value.Value{
		"nil":    value.Nil,
		"true":   value.Bool(true),
		"-3":     value.Int(-3),
		"2.5":    value.Float(2.5),
		"1.0":    value.Float(1),
		`"a\nb"`: value.String("a\nb"),
		":kw":    value.Keyword("kw"),
		"[1 2]":  value.Vector([]value.Value{value.Int(1), value.Int(2)}),
		"#{1}":   value.Set(value.SetOf(value.Int(1))),
		"{:a 1}": value.Map(value.MapOf(value.Keyword("a"), value.Int(1))),
	}
	for want, v := range cases {
		assert.Equal(t, want, value.Print(v))
	}
}
