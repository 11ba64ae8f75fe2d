// Package analyzer implements the PTC-Lisp analyzer (C3): it transforms the
// reader's raw AST into the core AST the evaluator walks, desugaring the
// fixed macro set, resolving every bare symbol, and expanding destructuring
// patterns.
package analyzer

import "ptc-lisp/pkg/value"

// Literal wraps a Value already known at analysis time (numbers, strings,
// keywords, nil, true/false).
type Literal struct{ Val value.Value }

func (Literal) Node() {}

// LocalRef is a bare symbol resolved to the evaluator's standard lookup
// chain: lexical bindings, then the user namespace, then builtins. The
// analyzer has already proven the name resolves to one of those three.
type LocalRef struct{ Name string }

func (LocalRef) Node() {}

// NsSym is an explicitly namespace-qualified reference: ctx/k, memory/k, or
// tool/name.
type NsSym struct {
	Namespace string
	Key       string
}

func (NsSym) Node() {}

// TurnHistory is *1, *2, or *3.
type TurnHistory struct{ N int }

func (TurnHistory) Node() {}

// If evaluates Cond, then Then or Else (Else is Literal{Nil} for 2-arg if).
type If struct {
	Cond, Then, Else value.Node
}

func (If) Node() {}

// Do sequences Forms, evaluating all for effect and returning the last
// (Nil for an empty Do).
type Do struct{ Forms []value.Node }

func (Do) Node() {}

// Let is a single binding of Param to Expr, with Body evaluated in the
// extended scope. `(let [p1 e1 p2 e2] body)` right-folds into nested Lets,
// one pair at a time, with the innermost Body a Do of the original body
// forms.
type Let struct {
	Param value.Param
	Expr  value.Node
	Body  value.Node
}

func (Let) Node() {}

// Fn constructs a Closure at evaluation time, capturing the lexical
// environment and a snapshot of the user namespace.
type Fn struct {
	Params   []value.Param
	Variadic *value.Param
	Body     []value.Node
	Name     string // set by defn; "" for anonymous fn
}

func (Fn) Node() {}

// Call evaluates Callee then Args left to right, then dispatches on the
// callee's runtime kind (closure, builtin, keyword, map, set).
type Call struct {
	Callee value.Node
	Args   []value.Node
}

func (Call) Node() {}

// Quote yields Val verbatim; Val was built directly from the raw AST by
// quoteValue, with no analysis performed on its contents.
type Quote struct{ Val value.Value }

func (Quote) Node() {}

// Def binds Expr's value under Name in the user namespace and returns it.
type Def struct {
	Name string
	Expr value.Node
}

func (Def) Node() {}

// And/Or implement short-circuit boolean evaluation; unlike every other
// call-shaped form, their arguments are not all evaluated up front (spec.md
// §4.4: "encoded in the analyzer, not as regular builtins").
type And struct{ Args []value.Node }

func (And) Node() {}

type Or struct{ Args []value.Node }

func (Or) Node() {}

// Loop binds Params to Inits and evaluates Body; a Recur in the body
// rebinds the params and re-enters it. Each pass through the body counts
// against the evaluator's iteration limit, so a loop that never reaches a
// non-recur value exits with loop_limit_exceeded (or the sandbox's
// wall-clock abort, whichever fires first).
type Loop struct {
	Params []value.Param
	Inits  []value.Node
	Body   []value.Node
}

func (Loop) Node() {}

// Recur re-enters the nearest enclosing Loop with fresh binding values. The
// analyzer rejects a recur with no enclosing loop.
type Recur struct{ Args []value.Node }

func (Recur) Node() {}

// VectorExpr, MapExpr, and SetExpr construct collection values at
// evaluation time from possibly non-literal sub-expressions (e.g. `[x (+ 1
// 2)]`); spec.md §3's Core AST list abridges these under "Literal", but a
// vector/map/set containing anything but constants needs its elements
// evaluated, so they get their own node shapes here.
type VectorExpr struct{ Items []value.Node }

func (VectorExpr) Node() {}

type MapExpr struct{ Pairs [][2]value.Node }

func (MapExpr) Node() {}

type SetExpr struct{ Items []value.Node }

func (SetExpr) Node() {}
