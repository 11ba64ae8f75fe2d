package analyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/value"
)

func mustParse(t *testing.T, src string) reader.Raw {
	t.Helper()
	forms, err := reader.ParseAll(src)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	return forms[0]
}

func TestAnalyzeLiterals(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "42"))
	require.NoError(t, err)
	lit, ok := node.(analyzer.Literal)
	require.True(t, ok)
	assert.Equal(t, value.Int(42), lit.Val)
}

func TestAnalyzeBuiltinCall(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(+ 1 2)"))
	require.NoError(t, err)
	call, ok := node.(analyzer.Call)
	require.True(t, ok)
	ref, ok := call.Callee.(analyzer.LocalRef)
	require.True(t, ok)
	assert.Equal(t, "+", ref.Name)
	assert.Len(t, call.Args, 2)
}

func TestAnalyzeUnboundVarErrors(t *testing.T) {
	_, err := analyzer.Analyze(mustParse(t, "totally-undefined"))
	require.Error(t, err)
	assert.Equal(t, errs.KindUnboundVar, errs.KindOf(err))
}

func TestAnalyzeNsSym(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "ctx/name"))
	require.NoError(t, err)
	ns, ok := node.(analyzer.NsSym)
	require.True(t, ok)
	assert.Equal(t, "ctx", ns.Namespace)
	assert.Equal(t, "name", ns.Key)
}

func TestAnalyzeTurnHistory(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "*1"))
	require.NoError(t, err)
	th, ok := node.(analyzer.TurnHistory)
	require.True(t, ok)
	assert.Equal(t, 1, th.N)
}

func TestAnalyzeIfTwoArgDefaultsElseToNil(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(if true 1)"))
	require.NoError(t, err)
	ifNode, ok := node.(analyzer.If)
	require.True(t, ok)
	lit, ok := ifNode.Else.(analyzer.Literal)
	require.True(t, ok)
	assert.Equal(t, value.Nil, lit.Val)
}

func TestAnalyzeWhenDesugarsToIf(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(when true 1 2)"))
	require.NoError(t, err)
	ifNode, ok := node.(analyzer.If)
	require.True(t, ok)
	doNode, ok := ifNode.Then.(analyzer.Do)
	require.True(t, ok)
	assert.Len(t, doNode.Forms, 2)
}

func TestAnalyzeCondDesugarsToNestedIf(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(cond false 1 true 2)"))
	require.NoError(t, err)
	outer, ok := node.(analyzer.If)
	require.True(t, ok)
	inner, ok := outer.Else.(analyzer.If)
	require.True(t, ok)
	lit, ok := inner.Then.(analyzer.Literal)
	require.True(t, ok)
	assert.Equal(t, value.Int(2), lit.Val)
}

func TestAnalyzeThreadFirst(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(-> 1 (+ 2) (* 3))"))
	require.NoError(t, err)
	outer, ok := node.(analyzer.Call)
	require.True(t, ok)
	require.Len(t, outer.Args, 2)
	inner, ok := outer.Args[0].(analyzer.Call)
	require.True(t, ok)
	lit, ok := inner.Args[0].(analyzer.Literal)
	require.True(t, ok)
	assert.Equal(t, value.Int(1), lit.Val)
}

func TestAnalyzeThreadLast(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(->> [1 2] (map (fn [x] (+ x 1))) (filter (fn [x] (> x 2))))"))
	require.NoError(t, err)
	outer, ok := node.(analyzer.Call)
	require.True(t, ok)
	require.Len(t, outer.Args, 2)
}

func TestAnalyzeLetSingleBinding(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(let [x 1] x)"))
	require.NoError(t, err)
	letNode, ok := node.(analyzer.Let)
	require.True(t, ok)
	assert.Equal(t, "x", letNode.Param.Name)
	doNode, ok := letNode.Body.(analyzer.Do)
	require.True(t, ok)
	require.Len(t, doNode.Forms, 1)
	ref, ok := doNode.Forms[0].(analyzer.LocalRef)
	require.True(t, ok)
	assert.Equal(t, "x", ref.Name)
}

func TestAnalyzeLetNestsRightFold(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(let [x 1 y 2] (+ x y))"))
	require.NoError(t, err)
	outer, ok := node.(analyzer.Let)
	require.True(t, ok)
	assert.Equal(t, "x", outer.Param.Name)
	inner, ok := outer.Body.(analyzer.Let)
	require.True(t, ok)
	assert.Equal(t, "y", inner.Param.Name)
}

func TestAnalyzeLetVectorDestructure(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(let [[a b & rest] [1 2 3 4]] a)"))
	require.NoError(t, err)
	letNode, ok := node.(analyzer.Let)
	require.True(t, ok)
	require.Len(t, letNode.Param.Vector, 2)
	assert.Equal(t, "a", letNode.Param.Vector[0].Name)
	assert.Equal(t, "b", letNode.Param.Vector[1].Name)
	require.NotNil(t, letNode.Param.Rest)
	assert.Equal(t, "rest", letNode.Param.Rest.Name)
}

func TestAnalyzeMapDestructureWithKeysOrAs(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, `(let [{:keys [a b] :or {b 0} :as whole} {:a 1}] a)`))
	require.NoError(t, err)
	letNode, ok := node.(analyzer.Let)
	require.True(t, ok)
	assert.True(t, letNode.Param.IsMap)
	assert.Equal(t, []string{"a", "b"}, letNode.Param.Keys)
	assert.Equal(t, value.Int(0), letNode.Param.Or["b"])
	assert.Equal(t, "whole", letNode.Param.As)
}

func TestAnalyzeFnVariadic(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(fn [a & rest] a)"))
	require.NoError(t, err)
	fnNode, ok := node.(analyzer.Fn)
	require.True(t, ok)
	require.Len(t, fnNode.Params, 1)
	require.NotNil(t, fnNode.Variadic)
	assert.Equal(t, "rest", fnNode.Variadic.Name)
}

func TestAnalyzeDefnSetsClosureName(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(defn square [x] (* x x))"))
	require.NoError(t, err)
	def, ok := node.(analyzer.Def)
	require.True(t, ok)
	assert.Equal(t, "square", def.Name)
	fnNode, ok := def.Expr.(analyzer.Fn)
	require.True(t, ok)
	assert.Equal(t, "square", fnNode.Name)
}

func TestAnalyzeDefnAllowsSelfRecursion(t *testing.T) {
	a := analyzer.New()
	_, err := a.AnalyzeProgram(mustParseAll(t, "(defn fact [n] (if (= n 0) 1 (* n (fact (- n 1)))))"))
	require.NoError(t, err)
}

func TestAnalyzeProgramThreadsUserNamespaceAcrossForms(t *testing.T) {
	a := analyzer.New()
	nodes, err := a.AnalyzeProgram(mustParseAll(t, "(def x 1) (+ x 1)"))
	require.NoError(t, err)
	require.Len(t, nodes, 2)
}

func TestAnalyzeAndOrAreSpecialForms(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "(and true false)"))
	require.NoError(t, err)
	_, ok := node.(analyzer.And)
	require.True(t, ok)

	node, err = analyzer.Analyze(mustParse(t, "(or false true)"))
	require.NoError(t, err)
	_, ok = node.(analyzer.Or)
	require.True(t, ok)
}

func TestAnalyzeQuoteDoesNotResolveSymbols(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "'(undefined-symbol 1 2)"))
	require.NoError(t, err)
	q, ok := node.(analyzer.Quote)
	require.True(t, ok)
	require.Equal(t, value.KindVector, q.Val.Kind)
	assert.Equal(t, value.Symbol("undefined-symbol"), q.Val.Vector[0])
}

func TestAnalyzeVectorAndMapLiteralsWithExpressions(t *testing.T) {
	node, err := analyzer.Analyze(mustParse(t, "[1 (+ 1 1)]"))
	require.NoError(t, err)
	vec, ok := node.(analyzer.VectorExpr)
	require.True(t, ok)
	require.Len(t, vec.Items, 2)
	_, ok = vec.Items[1].(analyzer.Call)
	assert.True(t, ok)

	node, err = analyzer.Analyze(mustParse(t, "{:a (+ 1 1)}"))
	require.NoError(t, err)
	m, ok := node.(analyzer.MapExpr)
	require.True(t, ok)
	require.Len(t, m.Pairs, 1)
}

func mustParseAll(t *testing.T, src string) []reader.Raw {
	t.Helper()
	forms, err := reader.ParseAll(src)
	require.NoError(t, err)
	return forms
}
