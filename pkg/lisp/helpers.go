package lisp

import (
	"strings"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

type adder func(name string, fn value.Fn)

// seqOf normalizes any seqable runtime value into a slice, per spec.md
// §4.4: map entries become [k v] two-element vectors.
func seqOf(v value.Value) ([]value.Value, error) {
	switch v.Kind {
	case value.KindNil:
		return nil, nil
	case value.KindVector:
		return v.Vector, nil
	case value.KindSet:
		return v.Set.Items(), nil
	case value.KindMap:
		entries := v.Map.Entries()
		out := make([]value.Value, len(entries))
		for i, e := range entries {
			out[i] = value.Vector([]value.Value{e[0], e[1]})
		}
		return out, nil
	default:
		return nil, errs.New(errs.KindTypeError, "expected a collection, got "+value.TypeName(v), nil)
	}
}

func wrongType(fnName string, got value.Value) error {
	return errs.New(errs.KindTypeError, fnName+": unexpected argument type "+value.TypeName(got), nil)
}

func arityError(fnName string, got int) error {
	return errs.New(errs.KindArityError, fnName+": wrong number of arguments", map[string]any{"got": got})
}

func isNumber(v value.Value) bool { return v.Kind == value.KindInt || v.Kind == value.KindFloat }

func asFloat(v value.Value) float64 {
	if v.Kind == value.KindInt {
		return float64(v.Int)
	}
	return v.Float
}

func asString(v value.Value) (string, bool) {
	if v.Kind == value.KindString {
		return v.Str, true
	}
	return "", false
}

func asIntArg(v value.Value) (int, bool) {
	if v.Kind != value.KindInt {
		return 0, false
	}
	return int(v.Int), true
}

// strRepr is str's per-element stringification: raw text for
// strings/nil, canonical print syntax for everything else (so (str :k)
// keeps its colon but (str "a" "b") doesn't quote its pieces).
func strRepr(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.Str
	case value.KindNil:
		return ""
	default:
		return value.Print(v)
	}
}

// compareValues orders two runtime values for sort/sort-by/where's
// relational operators. Only numbers-with-numbers and same-kind
// strings/keywords are ordered; anything else is a type_error.
func compareValues(a, b value.Value) (int, error) {
	if isNumber(a) && isNumber(b) {
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.Kind == value.KindString && b.Kind == value.KindString {
		return strings.Compare(a.Str, b.Str), nil
	}
	if a.Kind == value.KindKeyword && b.Kind == value.KindKeyword {
		return strings.Compare(a.Str, b.Str), nil
	}
	return 0, errs.New(errs.KindTypeError, "cannot compare "+value.TypeName(a)+" and "+value.TypeName(b), nil)
}

// getOne is the shared single-key lookup behind get, get-in, and the
// keyword/map-as-function call forms.
func getOne(coll, key, def value.Value) (value.Value, error) {
	switch coll.Kind {
	case value.KindNil:
		return def, nil
	case value.KindMap:
		if v, ok := coll.Map.GetFlex(key); ok {
			return v, nil
		}
		return def, nil
	case value.KindVector:
		if key.Kind != value.KindInt {
			return def, nil
		}
		idx := int(key.Int)
		if idx < 0 || idx >= len(coll.Vector) {
			return def, nil
		}
		return coll.Vector[idx], nil
	default:
		return value.Nil, wrongType("get", coll)
	}
}

// assocOne is the shared single-key update behind assoc and assoc-in.
func assocOne(coll, key, val value.Value) (value.Value, error) {
	switch coll.Kind {
	case value.KindNil:
		m := value.NewOrderedMap()
		m.Set(key, val)
		return value.Map(m), nil
	case value.KindMap:
		m := coll.Map.Clone()
		m.Set(key, val)
		return value.Map(m), nil
	case value.KindVector:
		if key.Kind != value.KindInt {
			return value.Nil, wrongType("assoc", key)
		}
		idx := int(key.Int)
		out := append([]value.Value{}, coll.Vector...)
		if idx < 0 || idx > len(out) {
			return value.Nil, errs.New(errs.KindTypeError, "assoc index out of bounds", map[string]any{"index": idx})
		}
		if idx == len(out) {
			out = append(out, val)
		} else {
			out[idx] = val
		}
		return value.Vector(out), nil
	default:
		return value.Nil, wrongType("assoc", coll)
	}
}

// conjOne is the shared single-item insertion behind conj and into.
func conjOne(coll, item value.Value) (value.Value, error) {
	switch coll.Kind {
	case value.KindNil:
		return value.Vector([]value.Value{item}), nil
	case value.KindVector:
		return value.Vector(append(append([]value.Value{}, coll.Vector...), item)), nil
	case value.KindSet:
		s := value.SetOf(coll.Set.Items()...)
		s.Add(item)
		return value.Set(s), nil
	case value.KindMap:
		if item.Kind != value.KindVector || len(item.Vector) != 2 {
			return value.Nil, errs.New(errs.KindTypeError, "conj on a map requires [k v] pairs", nil)
		}
		m := coll.Map.Clone()
		m.Set(item.Vector[0], item.Vector[1])
		return value.Map(m), nil
	default:
		return value.Nil, wrongType("conj", coll)
	}
}
