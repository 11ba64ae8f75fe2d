package analyzer

import (
	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/value"
)

// parseParamList reads a parameter vector's items, binding every name it
// introduces into sc and splitting off a trailing "& rest" pattern if
// present (spec.md §4.2.4).
func (a *Analyzer) parseParamList(items []reader.Raw, sc *scope) ([]value.Param, *value.Param, error) {
	var params []value.Param
	var variadic *value.Param
	i := 0
	for i < len(items) {
		if isAmpersand(items[i]) {
			if i+1 >= len(items) {
				return nil, nil, errs.New(errs.KindBadDestructure, "'&' must be followed by a rest binding", map[string]any{"pos": items[i].Pos})
			}
			p, err := a.parseParamPattern(items[i+1], sc)
			if err != nil {
				return nil, nil, err
			}
			variadic = &p
			i += 2
			continue
		}
		p, err := a.parseParamPattern(items[i], sc)
		if err != nil {
			return nil, nil, err
		}
		params = append(params, p)
		i++
	}
	return params, variadic, nil
}

func isAmpersand(raw reader.Raw) bool {
	return raw.Kind == reader.RawAtom && raw.Atom.Kind == reader.AtomSymbol && raw.Atom.Text == "&"
}

// parseParamPattern parses one binding position: a plain symbol, a vector
// (positional destructuring, itself possibly variadic), or a map ({:keys
// [...], :or {...}, :as v}) (spec.md §4.2.4).
func (a *Analyzer) parseParamPattern(raw reader.Raw, sc *scope) (value.Param, error) {
	switch raw.Kind {
	case reader.RawAtom:
		if raw.Atom.Kind != reader.AtomSymbol {
			return value.Param{}, errs.New(errs.KindBadDestructure, "expected a binding symbol", map[string]any{"pos": raw.Pos})
		}
		name := raw.Atom.Text
		sc.bind(name)
		return value.Param{Name: name}, nil
	case reader.RawVector:
		sub, variadic, err := a.parseParamList(raw.Items, sc)
		if err != nil {
			return value.Param{}, err
		}
		return value.Param{Vector: sub, Rest: variadic}, nil
	case reader.RawMap:
		return a.parseMapPattern(raw, sc)
	default:
		return value.Param{}, errs.New(errs.KindBadDestructure, "invalid binding pattern", map[string]any{"pos": raw.Pos})
	}
}

func (a *Analyzer) parseMapPattern(raw reader.Raw, sc *scope) (value.Param, error) {
	if len(raw.Items)%2 != 0 {
		return value.Param{}, errs.New(errs.KindBadDestructure, "map destructuring pattern must have an even number of forms", map[string]any{"pos": raw.Pos})
	}
	p := value.Param{IsMap: true, Or: make(map[string]value.Value)}
	for i := 0; i < len(raw.Items); i += 2 {
		keyRaw, valRaw := raw.Items[i], raw.Items[i+1]
		if keyRaw.Kind != reader.RawAtom || keyRaw.Atom.Kind != reader.AtomKeyword {
			return value.Param{}, errs.New(errs.KindBadDestructure, "map destructuring keys must be keywords", map[string]any{"pos": keyRaw.Pos})
		}
		switch keyRaw.Atom.Text {
		case "keys":
			if valRaw.Kind != reader.RawVector {
				return value.Param{}, errs.New(errs.KindBadDestructure, ":keys requires a vector of symbols", map[string]any{"pos": valRaw.Pos})
			}
			for _, item := range valRaw.Items {
				if item.Kind != reader.RawAtom || item.Atom.Kind != reader.AtomSymbol {
					return value.Param{}, errs.New(errs.KindBadDestructure, ":keys entries must be symbols", map[string]any{"pos": item.Pos})
				}
				p.Keys = append(p.Keys, item.Atom.Text)
				sc.bind(item.Atom.Text)
			}
		case "or":
			if valRaw.Kind != reader.RawMap || len(valRaw.Items)%2 != 0 {
				return value.Param{}, errs.New(errs.KindBadDestructure, ":or requires a map of symbol to default literal", map[string]any{"pos": valRaw.Pos})
			}
			for j := 0; j < len(valRaw.Items); j += 2 {
				nameRaw, litRaw := valRaw.Items[j], valRaw.Items[j+1]
				if nameRaw.Kind != reader.RawAtom || nameRaw.Atom.Kind != reader.AtomSymbol {
					return value.Param{}, errs.New(errs.KindBadDestructure, ":or keys must be symbols", map[string]any{"pos": nameRaw.Pos})
				}
				lit, err := literalValue(litRaw)
				if err != nil {
					return value.Param{}, err
				}
				p.Or[nameRaw.Atom.Text] = lit
			}
		case "as":
			if valRaw.Kind != reader.RawAtom || valRaw.Atom.Kind != reader.AtomSymbol {
				return value.Param{}, errs.New(errs.KindBadDestructure, ":as requires a symbol", map[string]any{"pos": valRaw.Pos})
			}
			p.As = valRaw.Atom.Text
			sc.bind(p.As)
		default:
			return value.Param{}, errs.New(errs.KindBadDestructure, "unsupported map destructuring key: "+keyRaw.Atom.Text, map[string]any{"pos": keyRaw.Pos})
		}
	}
	return p, nil
}

// literalValue restricts :or default values to constants — PTC-Lisp
// programs are LLM-generated and the destructuring defaults observed in
// practice are always literals, so arbitrary expressions aren't supported.
func literalValue(raw reader.Raw) (value.Value, error) {
	if raw.Kind != reader.RawAtom {
		return value.Value{}, errs.New(errs.KindBadDestructure, ":or default values must be literals", map[string]any{"pos": raw.Pos})
	}
	switch raw.Atom.Kind {
	case reader.AtomNil:
		return value.Nil, nil
	case reader.AtomBool:
		return value.Bool(raw.Atom.Bool), nil
	case reader.AtomInt:
		return value.Int(raw.Atom.Int), nil
	case reader.AtomFloat:
		return value.Float(raw.Atom.Float), nil
	case reader.AtomString:
		return value.String(raw.Atom.Text), nil
	case reader.AtomKeyword:
		return value.Keyword(raw.Atom.Text), nil
	default:
		return value.Value{}, errs.New(errs.KindBadDestructure, ":or default values must be literals", map[string]any{"pos": raw.Pos})
	}
}
