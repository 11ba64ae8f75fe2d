package lisp

import (
	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

// registerPredicateCombinatorBuiltins wires where/all-of/any-of/none-of
// (spec.md §4.4): each returns a Builtin closing over its configuration,
// ready to be handed to filter/every?/etc.
func (ev *Evaluator) registerPredicateCombinatorBuiltins(add adder) {
	add("where", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 && len(args) != 3 {
			return value.Nil, arityError("where", len(args))
		}
		field := args[0]
		if field.Kind != value.KindKeyword {
			return value.Nil, wrongType("where", field)
		}
		if len(args) == 1 {
			return value.BuiltinV(&value.Builtin{Name: "where-pred", Call: func(inner []value.Value) (value.Value, error) {
				if len(inner) != 1 {
					return value.Nil, arityError("where-pred", len(inner))
				}
				v, err := getOne(inner[0], field, value.Nil)
				if err != nil {
					return value.Nil, err
				}
				return value.Bool(v.Truthy()), nil
			}}), nil
		}
		op, ok := operatorText(args[1])
		if !ok {
			return value.Nil, wrongType("where", args[1])
		}
		target := args[2]
		return value.BuiltinV(&value.Builtin{Name: "where-pred", Call: func(inner []value.Value) (value.Value, error) {
			if len(inner) != 1 {
				return value.Nil, arityError("where-pred", len(inner))
			}
			fv, err := getOne(inner[0], field, value.Nil)
			if err != nil {
				return value.Nil, err
			}
			return evalWhereOp(op, fv, target)
		}}), nil
	})
	add("all-of", combinator("all-of", ev, func(results []bool) bool {
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}))
	add("any-of", combinator("any-of", ev, func(results []bool) bool {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}))
	add("none-of", combinator("none-of", ev, func(results []bool) bool {
		for _, r := range results {
			if r {
				return false
			}
		}
		return true
	}))
}

func combinator(name string, ev *Evaluator, fold func(results []bool) bool) value.Fn {
	return func(preds []value.Value) (value.Value, error) {
		predsCopy := append([]value.Value{}, preds...)
		return value.BuiltinV(&value.Builtin{Name: name + "-pred", Call: func(inner []value.Value) (value.Value, error) {
			results := make([]bool, len(predsCopy))
			for i, p := range predsCopy {
				v, err := ev.applyCb(p, inner)
				if err != nil {
					return value.Nil, err
				}
				results[i] = v.Truthy()
			}
			return value.Bool(fold(results)), nil
		}}), nil
	}
}

// operatorText names where's comparison operator. A bare `>` in (where
// :price > 500) reaches the evaluator as the `>` builtin value, while a
// quoted or string/keyword spelling arrives as text; both forms are
// accepted.
func operatorText(v value.Value) (string, bool) {
	switch v.Kind {
	case value.KindString, value.KindKeyword, value.KindSymbol:
		return v.Str, true
	case value.KindBuiltin:
		return v.Builtin.Name, true
	default:
		return "", false
	}
}

func evalWhereOp(op string, a, b value.Value) (value.Value, error) {
	switch op {
	case "=":
		return value.Bool(value.Equal(a, b)), nil
	case "!=", "not=":
		return value.Bool(!value.Equal(a, b)), nil
	case "<", "<=", ">", ">=":
		c, err := compareValues(a, b)
		if err != nil {
			return value.Nil, err
		}
		switch op {
		case "<":
			return value.Bool(c < 0), nil
		case "<=":
			return value.Bool(c <= 0), nil
		case ">":
			return value.Bool(c > 0), nil
		default:
			return value.Bool(c >= 0), nil
		}
	default:
		return value.Nil, errs.New(errs.KindValidationError, "unknown where operator: "+op, nil)
	}
}
