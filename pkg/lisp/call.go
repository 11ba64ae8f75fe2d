package lisp

import (
	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/value"
)

func (ev *Evaluator) evalCall(n analyzer.Call, env *lexicalEnv) (value.Value, error) {
	callee, err := ev.Eval(n.Callee, env)
	if err != nil {
		return value.Nil, err
	}
	if callee.IsSentinel() {
		return callee, nil
	}
	args := make([]value.Value, 0, len(n.Args))
	for _, a := range n.Args {
		v, err := ev.Eval(a, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		args = append(args, v)
	}
	return ev.apply(callee, args)
}

// sentinelSignal carries a Return/Fail produced inside a builtin's callback
// out through arbitrarily nested helper code as an error; apply unwraps it
// back into the sentinel value. This is how (+ 1 (return 2)) and
// (map (fn [x] (return x)) v) both short-circuit without every collection
// helper inspecting its intermediate values.
type sentinelSignal struct{ v value.Value }

func (*sentinelSignal) Error() string { return "sentinel short-circuit" }

// applyCb invokes a user-supplied callback from inside a builtin. A sentinel
// result is converted to a sentinelSignal error so the enclosing builtin —
// and anything between it and the call site — aborts immediately.
func (ev *Evaluator) applyCb(fn value.Value, args []value.Value) (value.Value, error) {
	v, err := ev.apply(fn, args)
	if err != nil {
		return value.Nil, err
	}
	if v.IsSentinel() {
		return value.Nil, &sentinelSignal{v: v}
	}
	return v, nil
}

// apply dispatches a call-site invocation on callee's runtime kind
// (spec.md §4.3). Every apply counts as one call-site for the loop-limit
// counter.
func (ev *Evaluator) apply(callee value.Value, args []value.Value) (value.Value, error) {
	if err := ev.bumpIteration(); err != nil {
		return value.Nil, err
	}
	switch callee.Kind {
	case value.KindClosure:
		return ev.invokeClosure(callee.Closure, args)
	case value.KindBuiltin:
		v, err := callee.Builtin.Call(args)
		if err != nil {
			if ss, ok := err.(*sentinelSignal); ok {
				return ss.v, nil
			}
			return value.Nil, err
		}
		return v, nil
	case value.KindKeyword:
		return applyKeywordLookup(callee, args)
	case value.KindMap:
		return applyMapLookup(callee, args)
	case value.KindSet:
		return applySetLookup(callee, args)
	default:
		return value.Nil, errs.New(errs.KindNotCallable, "value of type "+value.TypeName(callee)+" is not callable", nil)
	}
}

// invokeClosure binds args into a fresh call frame rooted at the closure's
// captured lexical environment, using its namespace snapshot rather than
// the evaluator's live user namespace for free-symbol resolution.
func (ev *Evaluator) invokeClosure(c *value.Closure, args []value.Value) (value.Value, error) {
	min := len(c.Params)
	if c.Variadic == nil && len(args) != min {
		return value.Nil, errs.New(errs.KindArityError, "wrong number of arguments", map[string]any{"expected": min, "got": len(args)})
	}
	if c.Variadic != nil && len(args) < min {
		return value.Nil, errs.New(errs.KindArityError, "too few arguments", map[string]any{"expected_at_least": min, "got": len(args)})
	}
	captured, _ := c.Env.(*lexicalEnv)
	callEnv := newClosureCallEnv(captured, ev, c.NamespaceSnapshot)
	for i, p := range c.Params {
		if err := bindParam(p, args[i], callEnv); err != nil {
			return value.Nil, err
		}
	}
	if c.Variadic != nil {
		rest := append([]value.Value{}, args[min:]...)
		if err := bindParam(*c.Variadic, value.Vector(rest), callEnv); err != nil {
			return value.Nil, err
		}
	}
	return ev.evalBody(c.Body, callEnv)
}

func applyKeywordLookup(kw value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Nil, errs.New(errs.KindArityError, "keyword lookup takes 1 or 2 arguments", map[string]any{"got": len(args)})
	}
	def := value.Nil
	if len(args) == 2 {
		def = args[1]
	}
	switch args[0].Kind {
	case value.KindNil:
		return def, nil
	case value.KindMap:
		if v, ok := args[0].Map.GetFlex(kw); ok {
			return v, nil
		}
		return def, nil
	default:
		return value.Nil, errs.New(errs.KindTypeError, "keyword lookup target must be a map or nil", map[string]any{"got": value.TypeName(args[0])})
	}
}

func applyMapLookup(m value.Value, args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Nil, errs.New(errs.KindArityError, "map lookup takes 1 or 2 arguments", map[string]any{"got": len(args)})
	}
	def := value.Nil
	if len(args) == 2 {
		def = args[1]
	}
	if v, ok := m.Map.GetFlex(args[0]); ok {
		return v, nil
	}
	return def, nil
}

func applySetLookup(s value.Value, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Nil, errs.New(errs.KindArityError, "set membership test takes 1 argument", map[string]any{"got": len(args)})
	}
	if s.Set.Contains(args[0]) {
		return args[0], nil
	}
	return value.Nil, nil
}

// bindParam performs one destructuring assignment into env (spec.md §4.2.4).
func bindParam(p value.Param, v value.Value, env *lexicalEnv) error {
	switch {
	case p.IsMap:
		return bindMapParam(p, v, env)
	case p.Name != "":
		env.vars[p.Name] = v
		return nil
	default:
		return bindVectorParam(p, v, env)
	}
}

func bindVectorParam(p value.Param, v value.Value, env *lexicalEnv) error {
	var elems []value.Value
	switch v.Kind {
	case value.KindVector:
		elems = v.Vector
	case value.KindNil:
		elems = nil
	default:
		return errs.New(errs.KindBadDestructure, "cannot destructure a "+value.TypeName(v)+" as a sequence", nil)
	}
	for i, sub := range p.Vector {
		var elem value.Value = value.Nil
		if i < len(elems) {
			elem = elems[i]
		}
		if err := bindParam(sub, elem, env); err != nil {
			return err
		}
	}
	if p.Rest != nil {
		var rest []value.Value
		if len(elems) > len(p.Vector) {
			rest = append(rest, elems[len(p.Vector):]...)
		}
		if err := bindParam(*p.Rest, value.Vector(rest), env); err != nil {
			return err
		}
	}
	return nil
}

func bindMapParam(p value.Param, v value.Value, env *lexicalEnv) error {
	var m *value.OrderedMap
	switch v.Kind {
	case value.KindMap:
		m = v.Map
	case value.KindNil:
		m = value.NewOrderedMap()
	default:
		return errs.New(errs.KindBadDestructure, "cannot destructure a "+value.TypeName(v)+" as a map", nil)
	}
	for _, key := range p.Keys {
		val, ok := m.GetFlex(value.Keyword(key))
		if !ok {
			if def, hasDefault := p.Or[key]; hasDefault {
				val = def
			} else {
				val = value.Nil
			}
		}
		env.vars[key] = val
	}
	if p.As != "" {
		env.vars[p.As] = v
	}
	return nil
}
