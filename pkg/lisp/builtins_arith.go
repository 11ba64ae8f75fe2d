package lisp

import (
	"math"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

// registerArithBuiltins wires +, -, *, / (spec.md §4.4). Mixed int/float
// arguments promote the whole operation to float; an all-int call stays
// in the integer tower.
func registerArithBuiltins(add adder) {
	add("+", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Int(0), nil
		}
		return numericFold("+", args, func(a, b int64) int64 { return a + b }, func(a, b float64) float64 { return a + b })
	})
	add("-", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, arityError("-", 0)
		}
		if len(args) == 1 {
			if !isNumber(args[0]) {
				return value.Nil, wrongType("-", args[0])
			}
			if args[0].Kind == value.KindInt {
				return value.Int(-args[0].Int), nil
			}
			return value.Float(-args[0].Float), nil
		}
		return numericFold("-", args, func(a, b int64) int64 { return a - b }, func(a, b float64) float64 { return a - b })
	})
	add("*", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Int(1), nil
		}
		return numericFold("*", args, func(a, b int64) int64 { return a * b }, func(a, b float64) float64 { return a * b })
	})
	add("/", func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, arityError("/", 0)
		}
		for _, a := range args {
			if !isNumber(a) {
				return value.Nil, wrongType("/", a)
			}
		}
		if len(args) == 1 {
			return value.Float(1 / asFloat(args[0])), nil
		}
		acc := asFloat(args[0])
		for _, a := range args[1:] {
			acc /= asFloat(a)
		}
		return value.Float(acc), nil
	})
	add("inc", unaryNumeric("inc", func(i int64) int64 { return i + 1 }, func(f float64) float64 { return f + 1 }))
	add("dec", unaryNumeric("dec", func(i int64) int64 { return i - 1 }, func(f float64) float64 { return f - 1 }))
	add("abs", unaryNumeric("abs", func(i int64) int64 {
		if i < 0 {
			return -i
		}
		return i
	}, math.Abs))
	add("mod", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("mod", len(args))
		}
		if args[0].Kind != value.KindInt || args[1].Kind != value.KindInt {
			return value.Nil, errs.New(errs.KindTypeError, "mod requires integer arguments", nil)
		}
		if args[1].Int == 0 {
			return value.Nil, errs.New(errs.KindTypeError, "mod by zero", nil)
		}
		m := args[0].Int % args[1].Int
		if m != 0 && (m < 0) != (args[1].Int < 0) {
			m += args[1].Int
		}
		return value.Int(m), nil
	})
	add("min", extremum("min", func(c int) bool { return c < 0 }))
	add("max", extremum("max", func(c int) bool { return c > 0 }))
}

func unaryNumeric(name string, intOp func(int64) int64, floatOp func(float64) float64) value.Fn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError(name, len(args))
		}
		switch args[0].Kind {
		case value.KindInt:
			return value.Int(intOp(args[0].Int)), nil
		case value.KindFloat:
			return value.Float(floatOp(args[0].Float)), nil
		default:
			return value.Nil, wrongType(name, args[0])
		}
	}
}

func extremum(name string, wins func(c int) bool) value.Fn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.Nil, arityError(name, 0)
		}
		best := args[0]
		if !isNumber(best) {
			return value.Nil, wrongType(name, best)
		}
		for _, a := range args[1:] {
			if !isNumber(a) {
				return value.Nil, wrongType(name, a)
			}
			if c, _ := compareValues(a, best); wins(c) {
				best = a
			}
		}
		return best, nil
	}
}

func numericFold(name string, args []value.Value, intOp func(a, b int64) int64, floatOp func(a, b float64) float64) (value.Value, error) {
	for _, a := range args {
		if !isNumber(a) {
			return value.Nil, wrongType(name, a)
		}
	}
	allInt := true
	for _, a := range args {
		if a.Kind == value.KindFloat {
			allInt = false
			break
		}
	}
	if allInt {
		acc := args[0].Int
		for _, a := range args[1:] {
			acc = intOp(acc, a.Int)
		}
		return value.Int(acc), nil
	}
	acc := asFloat(args[0])
	for _, a := range args[1:] {
		acc = floatOp(acc, asFloat(a))
	}
	return value.Float(acc), nil
}

// registerComparisonBuiltins wires =, not=, <, <=, >, >= (spec.md §4.4). All
// are variadic: (< a b c) is true iff a < b < c.
func registerComparisonBuiltins(add adder) {
	add("=", builtinEq)
	neq := func(args []value.Value) (value.Value, error) {
		eq, err := builtinEq(args)
		if err != nil {
			return value.Nil, err
		}
		return value.Bool(!eq.Bool), nil
	}
	add("not=", neq)
	// != is where's spelling of not=; LLM-generated programs use both.
	add("!=", neq)
	add("<", numericChain("<", func(c int) bool { return c < 0 }))
	add("<=", numericChain("<=", func(c int) bool { return c <= 0 }))
	add(">", numericChain(">", func(c int) bool { return c > 0 }))
	add(">=", numericChain(">=", func(c int) bool { return c >= 0 }))
	add("not", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("not", len(args))
		}
		return value.Bool(!args[0].Truthy()), nil
	})
}

func builtinEq(args []value.Value) (value.Value, error) {
	for i := 1; i < len(args); i++ {
		if !value.Equal(args[i-1], args[i]) {
			return value.Bool(false), nil
		}
	}
	return value.Bool(true), nil
}

func numericChain(name string, ok func(c int) bool) value.Fn {
	return func(args []value.Value) (value.Value, error) {
		for _, a := range args {
			if !isNumber(a) {
				return value.Nil, wrongType(name, a)
			}
		}
		for i := 1; i < len(args); i++ {
			c, _ := compareValues(args[i-1], args[i])
			if !ok(c) {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	}
}
