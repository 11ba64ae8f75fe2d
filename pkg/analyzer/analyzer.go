package analyzer

import (
	"strings"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/value"
)

// Analyzer tracks the cumulative user namespace across a compilation unit
// (every def/defn a program has executed so far becomes visible to forms
// that follow it, and to its own body for self-recursion).
type Analyzer struct {
	userNs map[string]bool

	// loopDepth counts enclosing loop bodies at the current analysis point;
	// recur is legal only when it is positive. A fn body resets it — recur
	// never crosses a closure boundary.
	loopDepth int
}

// New returns an Analyzer with an empty user namespace.
func New() *Analyzer {
	return &Analyzer{userNs: make(map[string]bool)}
}

// AnalyzeProgram analyzes every top-level form produced by reader.ParseAll,
// in order, threading the user namespace across them.
func (a *Analyzer) AnalyzeProgram(forms []reader.Raw) ([]value.Node, error) {
	root := newScope(nil)
	return a.analyzeAll(forms, root)
}

// Analyze analyzes a single top-level form against a fresh user namespace.
// Nothing carries over between calls; program evaluation (lisp.Run, the
// SubAgent loop) goes through AnalyzeProgram instead.
func Analyze(form reader.Raw) (value.Node, error) {
	a := New()
	return a.analyze(form, newScope(nil))
}

func (a *Analyzer) analyzeAll(forms []reader.Raw, sc *scope) ([]value.Node, error) {
	nodes := make([]value.Node, 0, len(forms))
	for _, f := range forms {
		n, err := a.analyze(f, sc)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (a *Analyzer) analyze(raw reader.Raw, sc *scope) (value.Node, error) {
	switch raw.Kind {
	case reader.RawAtom:
		return a.analyzeAtom(raw, sc)
	case reader.RawQuote:
		return Quote{Val: quoteValue(raw.Items[0])}, nil
	case reader.RawVector:
		items, err := a.analyzeAll(raw.Items, sc)
		if err != nil {
			return nil, err
		}
		return VectorExpr{Items: items}, nil
	case reader.RawSet:
		items, err := a.analyzeAll(raw.Items, sc)
		if err != nil {
			return nil, err
		}
		return SetExpr{Items: items}, nil
	case reader.RawMap:
		if len(raw.Items)%2 != 0 {
			return nil, errs.New(errs.KindAnalysisError, "map literal requires an even number of forms", map[string]any{"pos": raw.Pos})
		}
		pairs := make([][2]value.Node, 0, len(raw.Items)/2)
		for i := 0; i < len(raw.Items); i += 2 {
			k, err := a.analyze(raw.Items[i], sc)
			if err != nil {
				return nil, err
			}
			v, err := a.analyze(raw.Items[i+1], sc)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, [2]value.Node{k, v})
		}
		return MapExpr{Pairs: pairs}, nil
	case reader.RawList:
		return a.analyzeList(raw, sc)
	default:
		return nil, errs.New(errs.KindAnalysisError, "unrecognized raw node", map[string]any{"pos": raw.Pos})
	}
}

func (a *Analyzer) analyzeAtom(raw reader.Raw, sc *scope) (value.Node, error) {
	switch raw.Atom.Kind {
	case reader.AtomNil:
		return Literal{Val: value.Nil}, nil
	case reader.AtomBool:
		return Literal{Val: value.Bool(raw.Atom.Bool)}, nil
	case reader.AtomInt:
		return Literal{Val: value.Int(raw.Atom.Int)}, nil
	case reader.AtomFloat:
		return Literal{Val: value.Float(raw.Atom.Float)}, nil
	case reader.AtomString:
		return Literal{Val: value.String(raw.Atom.Text)}, nil
	case reader.AtomKeyword:
		return Literal{Val: value.Keyword(raw.Atom.Text)}, nil
	case reader.AtomSymbol:
		return a.resolveSymbol(raw.Atom.Text, sc, raw.Pos)
	default:
		return nil, errs.New(errs.KindAnalysisError, "unrecognized atom", map[string]any{"pos": raw.Pos})
	}
}

func (a *Analyzer) resolveSymbol(name string, sc *scope, pos int) (value.Node, error) {
	if n, ok := parseTurnHistory(name); ok {
		return TurnHistory{N: n}, nil
	}
	if ns, key, ok := splitNamespaced(name); ok {
		switch ns {
		case "ctx", "memory", "tool":
			return NsSym{Namespace: ns, Key: key}, nil
		case "user":
			if !sc.has(key) && !a.userNs[key] {
				return nil, errs.New(errs.KindUnboundVar, "unbound var: "+name, map[string]any{"name": name, "pos": pos})
			}
			return LocalRef{Name: key}, nil
		default:
			return nil, errs.New(errs.KindUnboundVar, "unknown namespace: "+ns, map[string]any{"name": name, "pos": pos})
		}
	}
	if sc.has(name) || a.userNs[name] || isBuiltin(name) {
		return LocalRef{Name: name}, nil
	}
	return nil, errs.New(errs.KindUnboundVar, "unbound var: "+name, map[string]any{"name": name, "pos": pos})
}

func parseTurnHistory(name string) (int, bool) {
	if len(name) == 2 && name[0] == '*' && name[1] >= '1' && name[1] <= '3' {
		return int(name[1] - '0'), true
	}
	return 0, false
}

func splitNamespaced(name string) (string, string, bool) {
	idx := strings.IndexByte(name, '/')
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

func (a *Analyzer) analyzeList(raw reader.Raw, sc *scope) (value.Node, error) {
	if len(raw.Items) == 0 {
		return Literal{Val: value.Vector(nil)}, nil
	}
	head := raw.Items[0]
	if head.Kind == reader.RawAtom && head.Atom.Kind == reader.AtomSymbol && specialForms[head.Atom.Text] {
		return a.analyzeSpecialForm(head.Atom.Text, raw, sc)
	}
	callee, err := a.analyze(head, sc)
	if err != nil {
		return nil, err
	}
	args, err := a.analyzeAll(raw.Items[1:], sc)
	if err != nil {
		return nil, err
	}
	return Call{Callee: callee, Args: args}, nil
}

func (a *Analyzer) analyzeSpecialForm(name string, raw reader.Raw, sc *scope) (value.Node, error) {
	switch name {
	case "quote":
		if len(raw.Items) != 2 {
			return nil, errs.New(errs.KindAnalysisError, "quote takes exactly one form", map[string]any{"pos": raw.Pos})
		}
		return Quote{Val: quoteValue(raw.Items[1])}, nil
	case "if":
		return a.analyzeIf(raw, sc)
	case "do":
		forms, err := a.analyzeAll(raw.Items[1:], sc)
		if err != nil {
			return nil, err
		}
		return Do{Forms: forms}, nil
	case "let":
		return a.analyzeLet(raw, sc)
	case "fn":
		return a.analyzeFn(raw, sc, "")
	case "defn":
		return a.analyzeDefn(raw, sc)
	case "def":
		return a.analyzeDef(raw, sc)
	case "when":
		return a.analyzeWhen(raw, sc)
	case "cond":
		if len(raw.Items[1:])%2 != 0 {
			return nil, errs.New(errs.KindAnalysisError, "cond requires an even number of test/expr forms", map[string]any{"pos": raw.Pos})
		}
		return a.buildCond(raw.Items[1:], sc)
	case "->":
		desugared, err := desugarThread(raw, true)
		if err != nil {
			return nil, err
		}
		return a.analyze(desugared, sc)
	case "->>":
		desugared, err := desugarThread(raw, false)
		if err != nil {
			return nil, err
		}
		return a.analyze(desugared, sc)
	case "loop":
		return a.analyzeLoop(raw, sc)
	case "recur":
		if a.loopDepth == 0 {
			return nil, errs.New(errs.KindAnalysisError, "recur used outside of loop", map[string]any{"pos": raw.Pos})
		}
		args, err := a.analyzeAll(raw.Items[1:], sc)
		if err != nil {
			return nil, err
		}
		return Recur{Args: args}, nil
	case "and":
		args, err := a.analyzeAll(raw.Items[1:], sc)
		if err != nil {
			return nil, err
		}
		return And{Args: args}, nil
	case "or":
		args, err := a.analyzeAll(raw.Items[1:], sc)
		if err != nil {
			return nil, err
		}
		return Or{Args: args}, nil
	default:
		return nil, errs.New(errs.KindAnalysisError, "unimplemented special form: "+name, map[string]any{"pos": raw.Pos})
	}
}

func (a *Analyzer) analyzeIf(raw reader.Raw, sc *scope) (value.Node, error) {
	args := raw.Items[1:]
	if len(args) < 2 || len(args) > 3 {
		return nil, errs.New(errs.KindAnalysisError, "if takes a condition, a then-branch, and an optional else-branch", map[string]any{"pos": raw.Pos})
	}
	cond, err := a.analyze(args[0], sc)
	if err != nil {
		return nil, err
	}
	then, err := a.analyze(args[1], sc)
	if err != nil {
		return nil, err
	}
	var els value.Node = Literal{Val: value.Nil}
	if len(args) == 3 {
		els, err = a.analyze(args[2], sc)
		if err != nil {
			return nil, err
		}
	}
	return If{Cond: cond, Then: then, Else: els}, nil
}

func (a *Analyzer) analyzeWhen(raw reader.Raw, sc *scope) (value.Node, error) {
	if len(raw.Items) < 2 {
		return nil, errs.New(errs.KindAnalysisError, "when requires a condition", map[string]any{"pos": raw.Pos})
	}
	cond, err := a.analyze(raw.Items[1], sc)
	if err != nil {
		return nil, err
	}
	body, err := a.analyzeAll(raw.Items[2:], sc)
	if err != nil {
		return nil, err
	}
	return If{Cond: cond, Then: Do{Forms: body}, Else: Literal{Val: value.Nil}}, nil
}

func (a *Analyzer) buildCond(clauses []reader.Raw, sc *scope) (value.Node, error) {
	if len(clauses) == 0 {
		return Literal{Val: value.Nil}, nil
	}
	test, err := a.analyze(clauses[0], sc)
	if err != nil {
		return nil, err
	}
	expr, err := a.analyze(clauses[1], sc)
	if err != nil {
		return nil, err
	}
	rest, err := a.buildCond(clauses[2:], sc)
	if err != nil {
		return nil, err
	}
	return If{Cond: test, Then: expr, Else: rest}, nil
}

func (a *Analyzer) analyzeLet(raw reader.Raw, sc *scope) (value.Node, error) {
	if len(raw.Items) < 2 {
		return nil, errs.New(errs.KindAnalysisError, "let requires a bindings vector", map[string]any{"pos": raw.Pos})
	}
	bindingsRaw := raw.Items[1]
	if bindingsRaw.Kind != reader.RawVector || len(bindingsRaw.Items)%2 != 0 {
		return nil, errs.New(errs.KindAnalysisError, "let bindings must be a vector with an even number of forms", map[string]any{"pos": raw.Pos})
	}
	return a.buildLet(bindingsRaw.Items, raw.Items[2:], sc)
}

func (a *Analyzer) buildLet(pairs []reader.Raw, body []reader.Raw, sc *scope) (value.Node, error) {
	if len(pairs) == 0 {
		forms, err := a.analyzeAll(body, sc)
		if err != nil {
			return nil, err
		}
		return Do{Forms: forms}, nil
	}
	patternRaw, exprRaw := pairs[0], pairs[1]
	exprNode, err := a.analyze(exprRaw, sc)
	if err != nil {
		return nil, err
	}
	childScope := newScope(sc)
	param, err := a.parseParamPattern(patternRaw, childScope)
	if err != nil {
		return nil, err
	}
	bodyNode, err := a.buildLet(pairs[2:], body, childScope)
	if err != nil {
		return nil, err
	}
	return Let{Param: param, Expr: exprNode, Body: bodyNode}, nil
}

func (a *Analyzer) analyzeFn(raw reader.Raw, sc *scope, name string) (value.Node, error) {
	if len(raw.Items) < 2 {
		return nil, errs.New(errs.KindAnalysisError, "fn requires a parameter vector", map[string]any{"pos": raw.Pos})
	}
	paramsRaw := raw.Items[1]
	if paramsRaw.Kind != reader.RawVector {
		return nil, errs.New(errs.KindAnalysisError, "fn parameters must be a vector", map[string]any{"pos": raw.Pos})
	}
	fnScope := newScope(sc)
	params, variadic, err := a.parseParamList(paramsRaw.Items, fnScope)
	if err != nil {
		return nil, err
	}
	outerDepth := a.loopDepth
	a.loopDepth = 0
	body, err := a.analyzeAll(raw.Items[2:], fnScope)
	a.loopDepth = outerDepth
	if err != nil {
		return nil, err
	}
	return Fn{Params: params, Variadic: variadic, Body: body, Name: name}, nil
}

func (a *Analyzer) analyzeLoop(raw reader.Raw, sc *scope) (value.Node, error) {
	if len(raw.Items) < 2 {
		return nil, errs.New(errs.KindAnalysisError, "loop requires a bindings vector", map[string]any{"pos": raw.Pos})
	}
	bindingsRaw := raw.Items[1]
	if bindingsRaw.Kind != reader.RawVector || len(bindingsRaw.Items)%2 != 0 {
		return nil, errs.New(errs.KindAnalysisError, "loop bindings must be a vector with an even number of forms", map[string]any{"pos": raw.Pos})
	}
	loopScope := newScope(sc)
	var params []value.Param
	var inits []value.Node
	for i := 0; i+1 < len(bindingsRaw.Items); i += 2 {
		// Inits see only the enclosing scope, not earlier loop bindings:
		// every binding is re-established on each recur, so sequential
		// visibility would not survive the second pass anyway.
		init, err := a.analyze(bindingsRaw.Items[i+1], sc)
		if err != nil {
			return nil, err
		}
		param, err := a.parseParamPattern(bindingsRaw.Items[i], loopScope)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		inits = append(inits, init)
	}
	a.loopDepth++
	body, err := a.analyzeAll(raw.Items[2:], loopScope)
	a.loopDepth--
	if err != nil {
		return nil, err
	}
	return Loop{Params: params, Inits: inits, Body: body}, nil
}

func (a *Analyzer) analyzeDefn(raw reader.Raw, sc *scope) (value.Node, error) {
	if len(raw.Items) < 3 {
		return nil, errs.New(errs.KindAnalysisError, "defn requires a name, a parameter vector, and a body", map[string]any{"pos": raw.Pos})
	}
	nameRaw := raw.Items[1]
	if nameRaw.Kind != reader.RawAtom || nameRaw.Atom.Kind != reader.AtomSymbol {
		return nil, errs.New(errs.KindAnalysisError, "defn name must be a symbol", map[string]any{"pos": raw.Pos})
	}
	name := nameRaw.Atom.Text
	a.userNs[name] = true // visible to its own body, for recursion
	fnRaw := reader.Raw{Kind: reader.RawList, Pos: raw.Pos, Items: append([]reader.Raw{raw.Items[0]}, raw.Items[2:]...)}
	fn, err := a.analyzeFn(fnRaw, sc, name)
	if err != nil {
		return nil, err
	}
	return Def{Name: name, Expr: fn}, nil
}

func (a *Analyzer) analyzeDef(raw reader.Raw, sc *scope) (value.Node, error) {
	if len(raw.Items) != 3 {
		return nil, errs.New(errs.KindAnalysisError, "def requires exactly a name and a value form", map[string]any{"pos": raw.Pos})
	}
	nameRaw := raw.Items[1]
	if nameRaw.Kind != reader.RawAtom || nameRaw.Atom.Kind != reader.AtomSymbol {
		return nil, errs.New(errs.KindAnalysisError, "def name must be a symbol", map[string]any{"pos": raw.Pos})
	}
	name := nameRaw.Atom.Text
	a.userNs[name] = true
	expr, err := a.analyze(raw.Items[2], sc)
	if err != nil {
		return nil, err
	}
	return Def{Name: name, Expr: expr}, nil
}

// quoteValue converts a raw AST node straight into a Value, with no
// analysis: symbols become Symbol values, nested forms become Vectors
// (lists and vectors share one runtime representation per spec.md §3).
func quoteValue(raw reader.Raw) value.Value {
	switch raw.Kind {
	case reader.RawAtom:
		switch raw.Atom.Kind {
		case reader.AtomNil:
			return value.Nil
		case reader.AtomBool:
			return value.Bool(raw.Atom.Bool)
		case reader.AtomInt:
			return value.Int(raw.Atom.Int)
		case reader.AtomFloat:
			return value.Float(raw.Atom.Float)
		case reader.AtomString:
			return value.String(raw.Atom.Text)
		case reader.AtomKeyword:
			return value.Keyword(raw.Atom.Text)
		case reader.AtomSymbol:
			return value.Symbol(raw.Atom.Text)
		}
	case reader.RawList, reader.RawVector:
		items := make([]value.Value, len(raw.Items))
		for i, it := range raw.Items {
			items[i] = quoteValue(it)
		}
		return value.Vector(items)
	case reader.RawMap:
		m := value.NewOrderedMap()
		for i := 0; i+1 < len(raw.Items); i += 2 {
			m.Set(quoteValue(raw.Items[i]), quoteValue(raw.Items[i+1]))
		}
		return value.Map(m)
	case reader.RawSet:
		s := value.NewOrderedSet()
		for _, it := range raw.Items {
			s.Add(quoteValue(it))
		}
		return value.Set(s)
	case reader.RawQuote:
		return value.Vector([]value.Value{value.Symbol("quote"), quoteValue(raw.Items[0])})
	}
	return value.Nil
}

// desugarThread expands -> (first=true) and ->> (first=false) into nested
// calls, per spec.md §4.2: each step receives the threaded value as its
// first argument (->) or last argument (->>).
func desugarThread(raw reader.Raw, first bool) (reader.Raw, error) {
	items := raw.Items[1:]
	if len(items) == 0 {
		return reader.Raw{}, errs.New(errs.KindAnalysisError, "threading macro requires an initial value", map[string]any{"pos": raw.Pos})
	}
	acc := items[0]
	for _, step := range items[1:] {
		acc = insertThreadedArg(step, acc, first)
	}
	return acc, nil
}

func insertThreadedArg(step, val reader.Raw, first bool) reader.Raw {
	if step.Kind != reader.RawList {
		return reader.Raw{Kind: reader.RawList, Pos: step.Pos, Items: []reader.Raw{step, val}}
	}
	newItems := make([]reader.Raw, 0, len(step.Items)+1)
	if first {
		newItems = append(newItems, step.Items[0], val)
		newItems = append(newItems, step.Items[1:]...)
	} else {
		newItems = append(newItems, step.Items...)
		newItems = append(newItems, val)
	}
	return reader.Raw{Kind: reader.RawList, Pos: step.Pos, Items: newItems}
}
