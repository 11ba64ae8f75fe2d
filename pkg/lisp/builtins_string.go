package lisp

import (
	"strings"

	"github.com/dlclark/regexp2"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

// registerStringBuiltins wires the string section of spec.md §4.4. Regular
// expressions follow Clojure's argument order: pattern first, subject
// second, matching dlclark/regexp2's .NET-flavored syntax.
func registerStringBuiltins(add adder) {
	add("str", func(args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(strRepr(a))
		}
		return value.String(sb.String()), nil
	})
	add("str-join", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("str-join", len(args))
		}
		sep, ok := asString(args[0])
		if !ok {
			return value.Nil, wrongType("str-join", args[0])
		}
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = strRepr(it)
		}
		return value.String(strings.Join(parts, sep)), nil
	})
	add("split", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("split", len(args))
		}
		s, ok1 := asString(args[0])
		sep, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return value.Nil, wrongType("split", args[0])
		}
		parts := strings.Split(s, sep)
		out := make([]value.Value, len(parts))
		for i, p := range parts {
			out[i] = value.String(p)
		}
		return value.Vector(out), nil
	})
	add("split-lines", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("split-lines", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.Nil, wrongType("split-lines", args[0])
		}
		lines := strings.Split(s, "\n")
		out := make([]value.Value, len(lines))
		for i, l := range lines {
			out[i] = value.String(strings.TrimSuffix(l, "\r"))
		}
		return value.Vector(out), nil
	})
	add("trim", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("trim", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.Nil, wrongType("trim", args[0])
		}
		return value.String(strings.TrimSpace(s)), nil
	})
	add("lower-case", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("lower-case", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.Nil, wrongType("lower-case", args[0])
		}
		return value.String(strings.ToLower(s)), nil
	})
	add("upper-case", func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Nil, arityError("upper-case", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.Nil, wrongType("upper-case", args[0])
		}
		return value.String(strings.ToUpper(s)), nil
	})
	add("subs", func(args []value.Value) (value.Value, error) {
		if len(args) < 2 || len(args) > 3 {
			return value.Nil, arityError("subs", len(args))
		}
		s, ok := asString(args[0])
		if !ok {
			return value.Nil, wrongType("subs", args[0])
		}
		runes := []rune(s)
		start, ok := asIntArg(args[1])
		if !ok || start < 0 || start > len(runes) {
			return value.Nil, errs.New(errs.KindValidationError, "subs start index out of bounds", map[string]any{"start": start})
		}
		end := len(runes)
		if len(args) == 3 {
			e, ok := asIntArg(args[2])
			if !ok || e < start || e > len(runes) {
				return value.Nil, errs.New(errs.KindValidationError, "subs end index out of bounds", map[string]any{"end": e})
			}
			end = e
		}
		return value.String(string(runes[start:end])), nil
	})
	add("starts-with?", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("starts-with?", len(args))
		}
		s, ok1 := asString(args[0])
		prefix, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return value.Nil, wrongType("starts-with?", args[0])
		}
		return value.Bool(strings.HasPrefix(s, prefix)), nil
	})
	add("ends-with?", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("ends-with?", len(args))
		}
		s, ok1 := asString(args[0])
		suffix, ok2 := asString(args[1])
		if !ok1 || !ok2 {
			return value.Nil, wrongType("ends-with?", args[0])
		}
		return value.Bool(strings.HasSuffix(s, suffix)), nil
	})
	add("contains?", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("contains?", len(args))
		}
		coll, key := args[0], args[1]
		switch coll.Kind {
		case value.KindString:
			s, _ := asString(coll)
			sub, ok := asString(key)
			if !ok {
				return value.Nil, wrongType("contains?", key)
			}
			return value.Bool(strings.Contains(s, sub)), nil
		case value.KindMap:
			_, ok := coll.Map.GetFlex(key)
			return value.Bool(ok), nil
		case value.KindSet:
			return value.Bool(coll.Set.Contains(key)), nil
		case value.KindVector:
			if key.Kind != value.KindInt {
				return value.Bool(false), nil
			}
			return value.Bool(key.Int >= 0 && int(key.Int) < len(coll.Vector)), nil
		default:
			return value.Nil, wrongType("contains?", coll)
		}
	})
	add("re-find", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("re-find", len(args))
		}
		re, s, err := compileRegex(args[0], args[1], "re-find")
		if err != nil {
			return value.Nil, err
		}
		m, err := re.FindStringMatch(s)
		if err != nil {
			return value.Nil, errs.New(errs.KindTypeError, "re-find: "+err.Error(), nil)
		}
		if m == nil {
			return value.Nil, nil
		}
		return value.String(m.String()), nil
	})
	add("re-seq", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("re-seq", len(args))
		}
		re, s, err := compileRegex(args[0], args[1], "re-seq")
		if err != nil {
			return value.Nil, err
		}
		var out []value.Value
		m, err := re.FindStringMatch(s)
		for m != nil && err == nil {
			out = append(out, value.String(m.String()))
			m, err = re.FindNextMatch(m)
		}
		if err != nil {
			return value.Nil, errs.New(errs.KindTypeError, "re-seq: "+err.Error(), nil)
		}
		return value.Vector(out), nil
	})
}

func compileRegex(patternArg, subjectArg value.Value, fnName string) (*regexp2.Regexp, string, error) {
	pattern, ok1 := asString(patternArg)
	s, ok2 := asString(subjectArg)
	if !ok1 || !ok2 {
		return nil, "", wrongType(fnName, patternArg)
	}
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, "", errs.New(errs.KindValidationError, fnName+": invalid regular expression: "+err.Error(), nil)
	}
	return re, s, nil
}
