package lisp

import "ptc-lisp/pkg/value"

// registerTypeProbeBuiltins wires the nil?/number?/... type predicates
// (spec.md §4.4).
func (ev *Evaluator) registerTypeProbeBuiltins(add adder) {
	probe := func(name string, pred func(value.Value) bool) {
		add(name, func(args []value.Value) (value.Value, error) {
			if len(args) != 1 {
				return value.Nil, arityError(name, len(args))
			}
			return value.Bool(pred(args[0])), nil
		})
	}
	probe("nil?", func(v value.Value) bool { return v.Kind == value.KindNil })
	probe("number?", isNumber)
	probe("integer?", func(v value.Value) bool { return v.Kind == value.KindInt })
	probe("float?", func(v value.Value) bool { return v.Kind == value.KindFloat })
	probe("string?", func(v value.Value) bool { return v.Kind == value.KindString })
	probe("keyword?", func(v value.Value) bool { return v.Kind == value.KindKeyword })
	probe("map?", func(v value.Value) bool { return v.Kind == value.KindMap })
	probe("vector?", func(v value.Value) bool { return v.Kind == value.KindVector })
	probe("set?", func(v value.Value) bool { return v.Kind == value.KindSet })
	probe("fn?", func(v value.Value) bool { return v.Kind == value.KindClosure || v.Kind == value.KindBuiltin })
}
