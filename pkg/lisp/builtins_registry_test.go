package lisp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/value"
)

// TestRegistryMatchesAnalyzerBuiltinSet keeps the analyzer's bare-symbol
// resolution set and the evaluator's builtin registry in lock-step: a name
// known to one but not the other either fails analysis for a callable
// builtin, or resolves to a symbol the evaluator cannot look up.
func TestRegistryMatchesAnalyzerBuiltinSet(t *testing.T) {
	ev := NewEvaluator(nil, nil, [3]value.Value{}, nil, Opts{LoopLimit: 100})
	registered := make(map[string]bool, len(ev.builtins))
	for name := range ev.builtins {
		registered[name] = true
	}
	assert.Equal(t, analyzer.BuiltinNames(), registered)
}
