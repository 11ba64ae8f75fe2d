package lisp

import "ptc-lisp/pkg/value"

// registerHigherOrderBuiltins wires map/filter/reduce and friends (spec.md
// §4.4). Every callback argument is applied through ev.apply, so the
// keyword/map/set call-as-function shorthand works uniformly here too.
func (ev *Evaluator) registerHigherOrderBuiltins(add adder) {
	mapImpl := func(args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.Nil, arityError("map", len(args))
		}
		fn := args[0]
		seqs := make([][]value.Value, len(args)-1)
		minLen := -1
		for i, a := range args[1:] {
			items, err := seqOf(a)
			if err != nil {
				return value.Nil, err
			}
			seqs[i] = items
			if minLen == -1 || len(items) < minLen {
				minLen = len(items)
			}
		}
		out := make([]value.Value, minLen)
		for i := 0; i < minLen; i++ {
			callArgs := make([]value.Value, len(seqs))
			for j := range seqs {
				callArgs[j] = seqs[j][i]
			}
			v, err := ev.applyCb(fn, callArgs)
			if err != nil {
				return value.Nil, err
			}
			out[i] = v
		}
		return value.Vector(out), nil
	}
	add("map", mapImpl)
	add("mapv", mapImpl)
	add("filter", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("filter", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		var out []value.Value
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if v.Truthy() {
				out = append(out, it)
			}
		}
		return value.Vector(out), nil
	})
	add("remove", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("remove", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		var out []value.Value
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if !v.Truthy() {
				out = append(out, it)
			}
		}
		return value.Vector(out), nil
	})
	add("find", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("find", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if v.Truthy() {
				return it, nil
			}
		}
		return value.Nil, nil
	})
	add("reduce", func(args []value.Value) (value.Value, error) {
		switch len(args) {
		case 2:
			items, err := seqOf(args[1])
			if err != nil {
				return value.Nil, err
			}
			if len(items) == 0 {
				return value.Nil, nil
			}
			acc := items[0]
			for _, it := range items[1:] {
				v, err := ev.applyCb(args[0], []value.Value{acc, it})
				if err != nil {
					return value.Nil, err
				}
				acc = v
			}
			return acc, nil
		case 3:
			items, err := seqOf(args[2])
			if err != nil {
				return value.Nil, err
			}
			acc := args[1]
			for _, it := range items {
				v, err := ev.applyCb(args[0], []value.Value{acc, it})
				if err != nil {
					return value.Nil, err
				}
				acc = v
			}
			return acc, nil
		default:
			return value.Nil, arityError("reduce", len(args))
		}
	})
	add("some", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("some", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if v.Truthy() {
				return v, nil
			}
		}
		return value.Nil, nil
	})
	add("every?", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("every?", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if !v.Truthy() {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	})
	add("not-any?", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("not-any?", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if v.Truthy() {
				return value.Bool(false), nil
			}
		}
		return value.Bool(true), nil
	})
	add("pluck", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("pluck", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		out := make([]value.Value, len(items))
		for i, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			out[i] = v
		}
		return value.Vector(out), nil
	})
	add("sum-by", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("sum-by", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		allInt := true
		var fsum float64
		var isum int64
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if !isNumber(v) {
				return value.Nil, wrongType("sum-by", v)
			}
			if v.Kind == value.KindFloat {
				allInt = false
			} else {
				isum += v.Int
			}
			fsum += asFloat(v)
		}
		if allInt {
			return value.Int(isum), nil
		}
		return value.Float(fsum), nil
	})
	add("avg-by", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("avg-by", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		var sum float64
		for _, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if !isNumber(v) {
				return value.Nil, wrongType("avg-by", v)
			}
			sum += asFloat(v)
		}
		return value.Float(sum / float64(len(items))), nil
	})
	add("min-by", ev.extremeBy(func(a, b float64) bool { return a < b }))
	add("max-by", ev.extremeBy(func(a, b float64) bool { return a > b }))
}

func (ev *Evaluator) extremeBy(better func(a, b float64) bool) value.Fn {
	return func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("min-by/max-by", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		bestItem := items[0]
		bestKeyV, err := ev.applyCb(args[0], []value.Value{items[0]})
		if err != nil {
			return value.Nil, err
		}
		if !isNumber(bestKeyV) {
			return value.Nil, wrongType("min-by/max-by", bestKeyV)
		}
		bestKey := asFloat(bestKeyV)
		for _, it := range items[1:] {
			k, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			if !isNumber(k) {
				return value.Nil, wrongType("min-by/max-by", k)
			}
			if fk := asFloat(k); better(fk, bestKey) {
				bestKey = fk
				bestItem = it
			}
		}
		return bestItem, nil
	}
}
