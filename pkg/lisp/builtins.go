package lisp

import "ptc-lisp/pkg/value"

// buildBuiltins assembles the runtime library (spec.md §4.4) once per
// Evaluator. Arithmetic/comparison/string registration needs no evaluator
// state and is wired by free functions; every other category closes over
// ev to invoke user closures (map, filter, pmap, ...) or touch shared
// evaluator state (println's print log, pmap's worker pool).
func (ev *Evaluator) buildBuiltins() map[string]*value.Builtin {
	reg := map[string]*value.Builtin{}
	add := adder(func(name string, fn value.Fn) {
		reg[name] = &value.Builtin{Name: name, Call: fn}
	})

	registerArithBuiltins(add)
	registerComparisonBuiltins(add)
	registerStringBuiltins(add)
	ev.registerCollectionBuiltins(add)
	ev.registerHigherOrderBuiltins(add)
	ev.registerPredicateCombinatorBuiltins(add)
	ev.registerMapBuiltins(add)
	ev.registerSetBuiltins(add)
	ev.registerIOBuiltins(add)
	ev.registerConcurrencyBuiltins(add)
	ev.registerTypeProbeBuiltins(add)
	ev.registerSentinelBuiltins(add)

	return reg
}
