package lisp

import "ptc-lisp/pkg/value"

// lexicalEnv is the evaluator's environment chain. vars holds bindings
// introduced by let/fn at this level; parent is the enclosing lexical
// frame. ns is nil for every frame belonging to the "live" program
// evaluation (in which case user-namespace lookups fall through to
// ev.userNs, which keeps growing as def/defn forms run) and non-nil only
// for frames rooted at a closure invocation, where it holds that closure's
// NamespaceSnapshot — so a closure invoked after escaping its defining `do`
// block still sees exactly the helpers that existed when it was created
// (spec.md §4.2 bare-symbol policy), not whatever def forms ran afterward.
type lexicalEnv struct {
	vars   map[string]value.Value
	parent *lexicalEnv
	eval   *Evaluator
	ns     map[string]value.Value
}

func (e *Evaluator) rootEnv() *lexicalEnv {
	return &lexicalEnv{vars: make(map[string]value.Value), eval: e}
}

func newChildEnv(parent *lexicalEnv) *lexicalEnv {
	return &lexicalEnv{vars: make(map[string]value.Value), parent: parent, eval: parent.eval, ns: parent.ns}
}

func newClosureCallEnv(parent *lexicalEnv, eval *Evaluator, snapshot map[string]value.Value) *lexicalEnv {
	return &lexicalEnv{vars: make(map[string]value.Value), parent: parent, eval: eval, ns: snapshot}
}

// Lookup implements value.Env. It walks the lexical chain first, then
// consults either the closure's namespace snapshot or the live user
// namespace, then finally the builtin registry.
func (e *lexicalEnv) Lookup(name string) (value.Value, bool) {
	for le := e; le != nil; le = le.parent {
		if v, ok := le.vars[name]; ok {
			return v, true
		}
	}
	if e.ns != nil {
		if v, ok := e.ns[name]; ok {
			return v, true
		}
	} else if v, ok := e.eval.getUserNs(name); ok {
		return v, true
	}
	if b, ok := e.eval.builtins[name]; ok {
		return value.BuiltinV(b), true
	}
	return value.Nil, false
}
