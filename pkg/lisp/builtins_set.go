package lisp

import "ptc-lisp/pkg/value"

// registerSetBuiltins wires union/intersection/difference (spec.md §4.4);
// contains? is registered once, in builtins_string.go, since it dispatches
// across strings, maps, sets, and vectors alike.
func (ev *Evaluator) registerSetBuiltins(add adder) {
	add("union", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Set(value.NewOrderedSet()), nil
		}
		if args[0].Kind != value.KindSet {
			return value.Nil, wrongType("union", args[0])
		}
		s := args[0].Set
		for _, a := range args[1:] {
			if a.Kind != value.KindSet {
				return value.Nil, wrongType("union", a)
			}
			s = value.Union(s, a.Set)
		}
		return value.Set(s), nil
	})
	add("intersection", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, arityError("intersection", 0)
		}
		if args[0].Kind != value.KindSet {
			return value.Nil, wrongType("intersection", args[0])
		}
		s := args[0].Set
		for _, a := range args[1:] {
			if a.Kind != value.KindSet {
				return value.Nil, wrongType("intersection", a)
			}
			s = value.Intersection(s, a.Set)
		}
		return value.Set(s), nil
	})
	add("difference", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, arityError("difference", 0)
		}
		if args[0].Kind != value.KindSet {
			return value.Nil, wrongType("difference", args[0])
		}
		s := args[0].Set
		for _, a := range args[1:] {
			if a.Kind != value.KindSet {
				return value.Nil, wrongType("difference", a)
			}
			s = value.Difference(s, a.Set)
		}
		return value.Set(s), nil
	})
}
