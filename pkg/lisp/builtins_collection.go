package lisp

import (
	"sort"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

// registerCollectionBuiltins wires the collection-op section of spec.md
// §4.4. Ops never mutate their collection arguments; those that yield a
// sequence build a fresh vector, while others (count, first, frequencies,
// group-by, ...) return a count, an element or a map.
func (ev *Evaluator) registerCollectionBuiltins(add adder) {
	add("count", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("count", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		return value.Int(int64(len(items))), nil
	})
	add("empty?", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("empty?", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		return value.Bool(len(items) == 0), nil
	})
	add("first", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("first", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		return items[0], nil
	})
	add("second", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("second", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) < 2 {
			return value.Nil, nil
		}
		return items[1], nil
	})
	add("last", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("last", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		return items[len(items)-1], nil
	})
	add("nth", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return value.Nil, arityError("nth", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if args[1].Kind != value.KindInt {
			return value.Nil, wrongType("nth", args[1])
		}
		idx := int(args[1].Int)
		if idx < 0 || idx >= len(items) {
			if len(args) == 3 {
				return args[2], nil
			}
			return value.Nil, errs.New(errs.KindTypeError, "nth index out of bounds", map[string]any{"index": idx})
		}
		return items[idx], nil
	})
	add("rest", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("rest", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) <= 1 {
			return value.Vector(nil), nil
		}
		return value.Vector(append([]value.Value{}, items[1:]...)), nil
	})
	add("next", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("next", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) <= 1 {
			return value.Nil, nil
		}
		return value.Vector(append([]value.Value{}, items[1:]...)), nil
	})
	add("ffirst", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("ffirst", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		inner, err := seqOf(items[0])
		if err != nil {
			return value.Nil, err
		}
		if len(inner) == 0 {
			return value.Nil, nil
		}
		return inner[0], nil
	})
	add("fnext", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("fnext", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) < 2 {
			return value.Nil, nil
		}
		return items[1], nil
	})
	add("nfirst", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("nfirst", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		inner, err := seqOf(items[0])
		if err != nil {
			return value.Nil, err
		}
		if len(inner) <= 1 {
			return value.Vector(nil), nil
		}
		return value.Vector(append([]value.Value{}, inner[1:]...)), nil
	})
	add("nnext", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("nnext", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) <= 2 {
			return value.Vector(nil), nil
		}
		return value.Vector(append([]value.Value{}, items[2:]...)), nil
	})
	add("seq", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("seq", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		if len(items) == 0 {
			return value.Nil, nil
		}
		return value.Vector(items), nil
	})
	add("conj", func(args []value.Value) (value.Value, error) {
		if len(args) < 1 {
			return value.Nil, arityError("conj", len(args))
		}
		acc := args[0]
		for _, it := range args[1:] {
			var err error
			acc, err = conjOne(acc, it)
			if err != nil {
				return value.Nil, err
			}
		}
		return acc, nil
	})
	add("cons", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("cons", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		out := make([]value.Value, 0, len(items)+1)
		out = append(out, args[0])
		out = append(out, items...)
		return value.Vector(out), nil
	})
	add("into", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("into", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		acc := args[0]
		for _, it := range items {
			acc, err = conjOne(acc, it)
			if err != nil {
				return value.Nil, err
			}
		}
		return acc, nil
	})
	add("concat", func(args []value.Value) (value.Value, error) {
		var out []value.Value
		for _, a := range args {
			items, err := seqOf(a)
			if err != nil {
				return value.Nil, err
			}
			out = append(out, items...)
		}
		return value.Vector(out), nil
	})
	add("flatten", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("flatten", len(args))
		}
		var out []value.Value
		var rec func(value.Value)
		rec = func(v value.Value) {
			if v.Kind == value.KindVector {
				for _, e := range v.Vector {
					rec(e)
				}
				return
			}
			out = append(out, v)
		}
		rec(args[0])
		return value.Vector(out), nil
	})
	add("zip", func(args []value.Value) (value.Value, error) {
		return zipLike(args, false)
	})
	add("interleave", func(args []value.Value) (value.Value, error) {
		return zipLike(args, true)
	})
	add("take", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("take", len(args))
		}
		n, ok := asIntArg(args[0])
		if !ok {
			return value.Nil, wrongType("take", args[0])
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		if n < 0 {
			n = 0
		}
		if n > len(items) {
			n = len(items)
		}
		return value.Vector(append([]value.Value{}, items[:n]...)), nil
	})
	add("drop", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("drop", len(args))
		}
		n, ok := asIntArg(args[0])
		if !ok {
			return value.Nil, wrongType("drop", args[0])
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		if n < 0 {
			n = 0
		}
		if n > len(items) {
			n = len(items)
		}
		return value.Vector(append([]value.Value{}, items[n:]...)), nil
	})
	add("take-while", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("take-while", len(args))
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
				break
			}
			out = append(out, it)
		}
		return value.Vector(out), nil
	})
	add("drop-while", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("drop-while", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		i := 0
		for ; i < len(items); i++ {
			v, err := ev.applyCb(args[0], []value.Value{items[i]})
			if err != nil {
				return value.Nil, err
			}
			if !v.Truthy() {
				break
			}
		}
		return value.Vector(append([]value.Value{}, items[i:]...)), nil
	})
	add("distinct", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("distinct", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		seen := value.NewOrderedSet()
		var out []value.Value
		for _, it := range items {
			if !seen.Contains(it) {
				seen.Add(it)
				out = append(out, it)
			}
		}
		return value.Vector(out), nil
	})
	add("reverse", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("reverse", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		out := make([]value.Value, len(items))
		for i, it := range items {
			out[len(items)-1-i] = it
		}
		return value.Vector(out), nil
	})
	add("sort", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("sort", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		out := append([]value.Value{}, items...)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			c, err := compareValues(out[i], out[j])
			if err != nil {
				sortErr = err
			}
			return c < 0
		})
		if sortErr != nil {
			return value.Nil, sortErr
		}
		return value.Vector(out), nil
	})
	add("sort-by", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("sort-by", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		keyed := make([]value.Value, len(items))
		for i, it := range items {
			k, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			keyed[i] = k
		}
		idx := make([]int, len(items))
		for i := range idx {
			idx[i] = i
		}
		var sortErr error
		sort.SliceStable(idx, func(i, j int) bool {
			c, err := compareValues(keyed[idx[i]], keyed[idx[j]])
			if err != nil {
				sortErr = err
			}
			return c < 0
		})
		if sortErr != nil {
			return value.Nil, sortErr
		}
		sorted := make([]value.Value, len(items))
		for i, id := range idx {
			sorted[i] = items[id]
		}
		return value.Vector(sorted), nil
	})
	add("group-by", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("group-by", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		out := value.NewOrderedMap()
		for _, it := range items {
			k, err := ev.applyCb(args[0], []value.Value{it})
			if err != nil {
				return value.Nil, err
			}
			existing, ok := out.Get(k)
			if !ok {
				out.Set(k, value.Vector([]value.Value{it}))
			} else {
				out.Set(k, value.Vector(append(append([]value.Value{}, existing.Vector...), it)))
			}
		}
		return value.Map(out), nil
	})
	add("frequencies", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("frequencies", len(args))
		}
		items, err := seqOf(args[0])
		if err != nil {
			return value.Nil, err
		}
		out := value.NewOrderedMap()
		for _, it := range items {
			existing, ok := out.Get(it)
			if !ok {
				out.Set(it, value.Int(1))
			} else {
				out.Set(it, value.Int(existing.Int+1))
			}
		}
		return value.Map(out), nil
	})
	add("partition", func(args []value.Value) (value.Value, error) { return doPartition(args, false) })
	add("partition-all", func(args []value.Value) (value.Value, error) { return doPartition(args, true) })
	add("map-indexed", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("map-indexed", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		out := make([]value.Value, len(items))
		for i, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{value.Int(int64(i)), it})
			if err != nil {
				return value.Nil, err
			}
			out[i] = v
		}
		return value.Vector(out), nil
	})
	add("keep", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("keep", len(args))
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
			if v.Kind != value.KindNil {
				out = append(out, v)
			}
		}
		return value.Vector(out), nil
	})
	add("keep-indexed", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("keep-indexed", len(args))
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		var out []value.Value
		for i, it := range items {
			v, err := ev.applyCb(args[0], []value.Value{value.Int(int64(i)), it})
			if err != nil {
				return value.Nil, err
			}
			if v.Kind != value.KindNil {
				out = append(out, v)
			}
		}
		return value.Vector(out), nil
	})
}

func zipLike(args []value.Value, interleaved bool) (value.Value, error) {
	if len(args) == 0 {
		return value.Vector(nil), nil
	}
	seqs := make([][]value.Value, len(args))
	minLen := -1
	for i, a := range args {
		items, err := seqOf(a)
		if err != nil {
			return value.Nil, err
		}
		seqs[i] = items
		if minLen == -1 || len(items) < minLen {
			minLen = len(items)
		}
	}
	var out []value.Value
	for i := 0; i < minLen; i++ {
		if interleaved {
			for j := range seqs {
				out = append(out, seqs[j][i])
			}
			continue
		}
		row := make([]value.Value, len(seqs))
		for j := range seqs {
			row[j] = seqs[j][i]
		}
		out = append(out, value.Vector(row))
	}
	return value.Vector(out), nil
}

func doPartition(args []value.Value, keepPartial bool) (value.Value, error) {
	var n, step int
	var collArg value.Value
	switch len(args) {
	case 2:
		nn, ok := asIntArg(args[0])
		if !ok {
			return value.Nil, wrongType("partition", args[0])
		}
		n, step, collArg = nn, nn, args[1]
	case 3:
		nn, ok := asIntArg(args[0])
		if !ok {
			return value.Nil, wrongType("partition", args[0])
		}
		ss, ok2 := asIntArg(args[1])
		if !ok2 {
			return value.Nil, wrongType("partition", args[1])
		}
		n, step, collArg = nn, ss, args[2]
	default:
		return value.Nil, arityError("partition", len(args))
	}
	if n <= 0 || step <= 0 {
		return value.Nil, errs.New(errs.KindValidationError, "partition size and step must be positive", nil)
	}
	items, err := seqOf(collArg)
	if err != nil {
		return value.Nil, err
	}
	var out []value.Value
	for i := 0; i < len(items); i += step {
		end := i + n
		if end > len(items) {
			if keepPartial && i < len(items) {
				out = append(out, value.Vector(append([]value.Value{}, items[i:]...)))
			}
			break
		}
		out = append(out, value.Vector(append([]value.Value{}, items[i:end]...)))
	}
	return value.Vector(out), nil
}
