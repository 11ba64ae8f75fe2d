package lisp

import (
	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

// registerMapBuiltins wires the map-op section of spec.md §4.4.
func (ev *Evaluator) registerMapBuiltins(add adder) {
	add("get", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return value.Nil, arityError("get", len(args))
		}
		def := value.Nil
		if len(args) == 3 {
			def = args[2]
		}
		return getOne(args[0], args[1], def)
	})
	add("get-in", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return value.Nil, arityError("get-in", len(args))
		}
		def := value.Nil
		if len(args) == 3 {
			def = args[2]
		}
		path, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		cur := args[0]
		for _, p := range path {
			v, err := getOne(cur, p, value.Nil)
			if err != nil {
				return value.Nil, err
			}
			if v.Kind == value.KindNil {
				return def, nil
			}
			cur = v
		}
		return cur, nil
	})
	add("assoc", func(args []value.Value) (value.Value, error) {
		if len(args) < 1 || len(args)%2 != 1 {
			return value.Nil, errs.New(errs.KindArityError, "assoc requires an odd number of arguments", map[string]any{"got": len(args)})
		}
		acc := args[0]
		for i := 1; i < len(args); i += 2 {
			var err error
			acc, err = assocOne(acc, args[i], args[i+1])
			if err != nil {
				return value.Nil, err
			}
		}
		return acc, nil
	})
	add("assoc-in", func(args []value.Value) (value.Value, error) {
		if len(args) != 3 {
			return value.Nil, arityError("assoc-in", len(args))
		}
		path, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		if len(path) == 0 {
			return value.Nil, errs.New(errs.KindValidationError, "assoc-in requires a non-empty path", nil)
		}
		return assocInHelper(args[0], path, args[2])
	})
	add("update", func(args []value.Value) (value.Value, error) {
		if len(args) < 3 {
			return value.Nil, arityError("update", len(args))
		}
		coll, key, fn := args[0], args[1], args[2]
		cur, err := getOne(coll, key, value.Nil)
		if err != nil {
			return value.Nil, err
		}
		nv, err := ev.applyCb(fn, append([]value.Value{cur}, args[3:]...))
		if err != nil {
			return value.Nil, err
		}
		return assocOne(coll, key, nv)
	})
	add("update-in", func(args []value.Value) (value.Value, error) {
		if len(args) < 3 {
			return value.Nil, arityError("update-in", len(args))
		}
		path, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		return updateInHelper(ev, args[0], path, args[2], args[3:])
	})
	add("update-vals", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("update-vals", len(args))
		}
		if args[0].Kind != value.KindMap {
			return value.Nil, wrongType("update-vals", args[0])
		}
		out := value.NewOrderedMap()
		for _, e := range args[0].Map.Entries() {
			nv, err := ev.applyCb(args[1], []value.Value{e[1]})
			if err != nil {
				return value.Nil, err
			}
			out.Set(e[0], nv)
		}
		return value.Map(out), nil
	})
	add("update-keys", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("update-keys", len(args))
		}
		if args[0].Kind != value.KindMap {
			return value.Nil, wrongType("update-keys", args[0])
		}
		out := value.NewOrderedMap()
		for _, e := range args[0].Map.Entries() {
			nk, err := ev.applyCb(args[1], []value.Value{e[0]})
			if err != nil {
				return value.Nil, err
			}
			out.Set(nk, e[1])
		}
		return value.Map(out), nil
	})
	add("merge", func(args []value.Value) (value.Value, error) {
		out := value.NewOrderedMap()
		for _, a := range args {
			if a.Kind == value.KindNil {
				continue
			}
			if a.Kind != value.KindMap {
				return value.Nil, wrongType("merge", a)
			}
			for _, e := range a.Map.Entries() {
				out.Set(e[0], e[1])
			}
		}
		return value.Map(out), nil
	})
	add("merge-with", func(args []value.Value) (value.Value, error) {
		if len(args) < 1 {
			return value.Nil, arityError("merge-with", len(args))
		}
		fn := args[0]
		out := value.NewOrderedMap()
		for _, a := range args[1:] {
			if a.Kind == value.KindNil {
				continue
			}
			if a.Kind != value.KindMap {
				return value.Nil, wrongType("merge-with", a)
			}
			for _, e := range a.Map.Entries() {
				if existing, ok := out.Get(e[0]); ok {
					nv, err := ev.applyCb(fn, []value.Value{existing, e[1]})
					if err != nil {
						return value.Nil, err
					}
					out.Set(e[0], nv)
				} else {
					out.Set(e[0], e[1])
				}
			}
		}
		return value.Map(out), nil
	})
	add("select-keys", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("select-keys", len(args))
		}
		if args[0].Kind != value.KindMap {
			return value.Nil, wrongType("select-keys", args[0])
		}
		ks, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		out := value.NewOrderedMap()
		for _, k := range ks {
			if v, ok := args[0].Map.GetFlex(k); ok {
				out.Set(k, v)
			}
		}
		return value.Map(out), nil
	})
	add("dissoc", func(args []value.Value) (value.Value, error) {
		if len(args) < 1 {
			return value.Nil, arityError("dissoc", len(args))
		}
		if args[0].Kind == value.KindNil {
			return value.Nil, nil
		}
		if args[0].Kind != value.KindMap {
			return value.Nil, wrongType("dissoc", args[0])
		}
		m := args[0].Map.Clone()
		for _, k := range args[1:] {
			m.Delete(k)
		}
		return value.Map(m), nil
	})
	add("keys", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("keys", len(args))
		}
		if args[0].Kind != value.KindMap {
			return value.Nil, wrongType("keys", args[0])
		}
		return value.Vector(args[0].Map.Keys()), nil
	})
	add("vals", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("vals", len(args))
		}
		if args[0].Kind != value.KindMap {
			return value.Nil, wrongType("vals", args[0])
		}
		entries := args[0].Map.Entries()
		out := make([]value.Value, len(entries))
		for i, e := range entries {
			out[i] = e[1]
		}
		return value.Vector(out), nil
	})
}

func assocInHelper(coll value.Value, path []value.Value, val value.Value) (value.Value, error) {
	key := path[0]
	if len(path) == 1 {
		return assocOne(coll, key, val)
	}
	child, err := getOne(coll, key, value.Nil)
	if err != nil {
		return value.Nil, err
	}
	newChild, err := assocInHelper(child, path[1:], val)
	if err != nil {
		return value.Nil, err
	}
	return assocOne(coll, key, newChild)
}

func updateInHelper(ev *Evaluator, coll value.Value, path []value.Value, fn value.Value, extra []value.Value) (value.Value, error) {
	if len(path) == 0 {
		return value.Nil, errs.New(errs.KindValidationError, "update-in requires a non-empty path", nil)
	}
	key := path[0]
	if len(path) == 1 {
		cur, err := getOne(coll, key, value.Nil)
		if err != nil {
			return value.Nil, err
		}
		nv, err := ev.applyCb(fn, append([]value.Value{cur}, extra...))
		if err != nil {
			return value.Nil, err
		}
		return assocOne(coll, key, nv)
	}
	child, err := getOne(coll, key, value.Nil)
	if err != nil {
		return value.Nil, err
	}
	newChild, err := updateInHelper(ev, child, path[1:], fn, extra)
	if err != nil {
		return value.Nil, err
	}
	return assocOne(coll, key, newChild)
}
