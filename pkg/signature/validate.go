package signature

import (
	"fmt"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

// Validate checks v against t, returning a validation_error naming the
// offending field's path (spec.md §4.7) on the first mismatch found.
// path is the root segment used in error messages ("ctx" for context
// validation, "return" for return-value validation).
func Validate(t *Type, v value.Value, path string) error {
	if t == nil {
		return nil
	}
	if v.Kind == value.KindNil {
		if t.Optional || t.Kind == KindAny {
			return nil
		}
		return mismatch(path, t, v)
	}
	switch t.Kind {
	case KindAny:
		return nil
	case KindInt:
		if v.Kind != value.KindInt {
			return mismatch(path, t, v)
		}
		return nil
	case KindFloat:
		if v.Kind != value.KindFloat && v.Kind != value.KindInt {
			return mismatch(path, t, v)
		}
		return nil
	case KindString:
		if v.Kind != value.KindString {
			return mismatch(path, t, v)
		}
		return nil
	case KindBool:
		if v.Kind != value.KindBool {
			return mismatch(path, t, v)
		}
		return nil
	case KindKeyword:
		if v.Kind != value.KindKeyword {
			return mismatch(path, t, v)
		}
		return nil
	case KindMap:
		if v.Kind != value.KindMap {
			return mismatch(path, t, v)
		}
		return nil
	case KindSeq:
		return validateSeq(t, v, path)
	case KindSet:
		return validateSet(t, v, path)
	case KindRecord:
		return validateRecord(t, v, path)
	case KindFunc:
		if v.Kind != value.KindClosure && v.Kind != value.KindBuiltin {
			return mismatch(path, t, v)
		}
		return nil
	default:
		return mismatch(path, t, v)
	}
}

func validateSeq(t *Type, v value.Value, path string) error {
	var items []value.Value
	switch v.Kind {
	case value.KindVector:
		items = v.Vector
	default:
		return mismatch(path, t, v)
	}
	for i, item := range items {
		if err := Validate(t.Elem, item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func validateSet(t *Type, v value.Value, path string) error {
	if v.Kind != value.KindSet {
		return mismatch(path, t, v)
	}
	for _, item := range v.Set.Items() {
		if err := Validate(t.Elem, item, path+"{}"); err != nil {
			return err
		}
	}
	return nil
}

func validateRecord(t *Type, v value.Value, path string) error {
	if v.Kind != value.KindMap {
		return mismatch(path, t, v)
	}
	for _, key := range t.FieldOrder {
		fieldType := t.Fields[key]
		fv, ok := v.Map.GetFlex(value.Keyword(key))
		if !ok {
			if fieldType.Optional {
				continue
			}
			return errs.New(errs.KindValidationError, "missing required field "+path+"."+key, map[string]any{"path": path + "." + key})
		}
		if err := Validate(fieldType, fv, path+"."+key); err != nil {
			return err
		}
	}
	if !t.Open {
		for _, entry := range v.Map.Entries() {
			name := displayKey(entry[0])
			if _, declared := t.Fields[name]; !declared {
				return errs.New(errs.KindValidationError, "unexpected field "+path+"."+name, map[string]any{"path": path + "." + name})
			}
		}
	}
	return nil
}

func displayKey(v value.Value) string {
	switch v.Kind {
	case value.KindKeyword, value.KindString, value.KindSymbol:
		return v.Str
	default:
		return value.Print(v)
	}
}

func mismatch(path string, t *Type, v value.Value) error {
	return errs.New(errs.KindValidationError, "type mismatch at "+path, map[string]any{
		"path":     path,
		"expected": Describe(t),
		"got":      value.TypeName(v),
	})
}

// Describe renders a Type back to its source syntax, used in error detail
// and in expected-output sections of SubAgent prompts.
func Describe(t *Type) string {
	if t == nil {
		return ":any"
	}
	s := describeBare(t)
	if t.Optional {
		return s + "?"
	}
	return s
}

func describeBare(t *Type) string {
	switch t.Kind {
	case KindAny:
		return ":any"
	case KindInt:
		return ":int"
	case KindFloat:
		return ":float"
	case KindString:
		return ":string"
	case KindBool:
		return ":bool"
	case KindKeyword:
		return ":keyword"
	case KindMap:
		return ":map"
	case KindSeq:
		return "[" + Describe(t.Elem) + "]"
	case KindSet:
		return "#{" + Describe(t.Elem) + "}"
	case KindRecord:
		s := "{"
		for i, k := range t.FieldOrder {
			if i > 0 {
				s += ", "
			}
			s += k + " " + Describe(t.Fields[k])
		}
		if t.Open {
			if len(t.FieldOrder) > 0 {
				s += ", "
			}
			s += "..."
		}
		return s + "}"
	case KindFunc:
		s := "("
		for i, n := range t.ParamNames {
			if i > 0 {
				s += ", "
			}
			s += n + " " + Describe(t.Params[i])
		}
		return s + ") -> " + Describe(t.Return)
	default:
		return ":any"
	}
}

// StripHidden returns a copy of v with every record field whose name begins
// with "_" removed at every nesting level (spec.md §4.7's "firewall"),
// leaving the structured value (returned via SubAgent's trace/memory)
// untouched. Use this only when serializing a value for LLM consumption.
func StripHidden(v value.Value) value.Value {
	switch v.Kind {
	case value.KindMap:
		out := value.NewOrderedMap()
		for _, e := range v.Map.Entries() {
			name := displayKey(e[0])
			if IsHidden(name) {
				continue
			}
			out.Set(e[0], StripHidden(e[1]))
		}
		return value.Map(out)
	case value.KindVector:
		items := make([]value.Value, len(v.Vector))
		for i, it := range v.Vector {
			items[i] = StripHidden(it)
		}
		return value.Vector(items)
	case value.KindSet:
		out := value.NewOrderedSet()
		for _, it := range v.Set.Items() {
			out.Add(StripHidden(it))
		}
		return value.Set(out)
	default:
		return v
	}
}
