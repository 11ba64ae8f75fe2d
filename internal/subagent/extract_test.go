package subagent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/internal/errs"
	"ptc-lisp/internal/subagent"
)

func TestExtractCodeFencedTagged(t *testing.T) {
	resp := "Here is my answer:\n```clojure\n(+ 1 2)\n```\nDone."
	code, err := subagent.ExtractCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "(+ 1 2)", code)
}

func TestExtractCodeLastFencedWins(t *testing.T) {
	resp := "```lisp\n(+ 1 1)\n```\nscratch that\n```lisp\n(+ 2 2)\n```"
	code, err := subagent.ExtractCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "(+ 2 2)", code)
}

func TestExtractCodeXMLBlock(t *testing.T) {
	resp := "thinking...\n<clojure>(return 42)</clojure>"
	code, err := subagent.ExtractCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "(return 42)", code)
}

func TestExtractCodeFenceClosedByMismatchedTag(t *testing.T) {
	resp := "```clojure\n(return 7)\n</clojure>"
	code, err := subagent.ExtractCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "(return 7)", code)
}

func TestExtractCodeBareFence(t *testing.T) {
	resp := "```\n(return 1)\n```"
	code, err := subagent.ExtractCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "(return 1)", code)
}

func TestExtractCodeLeadingParen(t *testing.T) {
	resp := "   (return 1)"
	code, err := subagent.ExtractCode(resp)
	require.NoError(t, err)
	assert.Equal(t, "(return 1)", code)
}

func TestExtractCodeNoCodeFound(t *testing.T) {
	_, err := subagent.ExtractCode("no code here at all")
	require.Error(t, err)
	assert.Equal(t, errs.KindNoCodeFound, errs.KindOf(err))
}
