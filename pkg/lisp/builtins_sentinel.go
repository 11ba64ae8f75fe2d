package lisp

import "ptc-lisp/pkg/value"

// registerSentinelBuiltins wires return/fail (spec.md §4.3, §4.5). fail
// defaults :reason to :unspecified when the caller's argument omits it
// (a bare map without that key, or any non-map payload).
func (ev *Evaluator) registerSentinelBuiltins(add adder) {
	add("return", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("return", len(args))
		}
		return value.Return(args[0]), nil
	})
	add("fail", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("fail", len(args))
		}
		m := args[0]
		if m.Kind == value.KindMap {
			out := m.Map.Clone()
			if _, ok := out.Get(value.Keyword("reason")); !ok {
				out.Set(value.Keyword("reason"), value.Keyword("unspecified"))
			}
			return value.Fail(value.Map(out)), nil
		}
		out := value.NewOrderedMap()
		out.Set(value.Keyword("reason"), value.Keyword("unspecified"))
		out.Set(value.Keyword("message"), m)
		return value.Fail(value.Map(out)), nil
	})
}
