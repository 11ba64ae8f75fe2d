package lisp

import (
	"strings"

	"ptc-lisp/pkg/value"
)

// registerIOBuiltins wires println/print (spec.md §4.4). Output is captured
// into the evaluator's print log rather than written to a real stream —
// the sandbox surfaces that log as `prints` on the eval result — and is
// truncated with an ellipsis once PrintCharBudget is exceeded.
func (ev *Evaluator) registerIOBuiltins(add adder) {
	emit := func(args []value.Value, newline bool) (value.Value, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = strRepr(a)
		}
		s := strings.Join(parts, " ")
		if budget := ev.opts.PrintCharBudget; budget > 0 && len(s) > budget {
			s = s[:budget] + "…"
		}
		if newline {
			s += "\n"
		}
		ev.addPrint(s)
		return value.Nil, nil
	}
	add("println", func(args []value.Value) (value.Value, error) { return emit(args, true) })
	add("print", func(args []value.Value) (value.Value, error) { return emit(args, false) })
}
