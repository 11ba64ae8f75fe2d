// Package lisp implements the PTC-Lisp tree-walking evaluator (C4), its
// runtime builtin library (C5), and the memory contract (C7).
package lisp

import (
	"sync"
	"time"

	"ptc-lisp/internal/errs"
	"ptc-lisp/internal/types"
	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/value"
)

// Opts bounds one program evaluation (spec.md §4.3, §5).
type Opts struct {
	LoopLimit          int
	PrintCharBudget    int
	PmapTimeout        time.Duration
	PmapMaxConcurrency int
}

// Evaluator executes one core-AST program against a fixed ctx/memory/turn
// history. It is not safe to reuse across programs — construct a fresh one
// per sandboxed execution (pkg/sandbox owns that lifecycle).
type Evaluator struct {
	ctx         *value.OrderedMap
	memoryStart *value.OrderedMap
	turnHistory [3]value.Value
	tools       types.ToolExecutor
	opts        Opts
	builtins    map[string]*value.Builtin

	mu         sync.Mutex
	userNs     map[string]value.Value
	iterations int
	prints     []string
	toolCalls  []types.ToolCall

	// parent is set on the per-item Evaluator pmap forks (see
	// registerConcurrencyBuiltins): the loop-limit counter stays one shared
	// budget for the whole program, never one budget per worker, while
	// userNs/prints/toolCalls stay local to the fork (spec.md §5: "no shared
	// mutable state between concurrent pmap workers").
	parent *Evaluator
}

// NewEvaluator constructs an Evaluator ready to run one program.
// turnHistory[i] is *1, *2, *3 for i = 0, 1, 2 respectively; missing turns
// should be passed as value.Nil.
func NewEvaluator(ctx, memory *value.OrderedMap, turnHistory [3]value.Value, tools types.ToolExecutor, opts Opts) *Evaluator {
	if ctx == nil {
		ctx = value.NewOrderedMap()
	}
	if memory == nil {
		memory = value.NewOrderedMap()
	}
	ev := &Evaluator{
		ctx:         ctx,
		memoryStart: memory,
		turnHistory: turnHistory,
		tools:       tools,
		opts:        opts,
		userNs:      make(map[string]value.Value),
	}
	ev.builtins = ev.buildBuiltins()
	return ev
}

func (ev *Evaluator) getUserNs(name string) (value.Value, bool) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	v, ok := ev.userNs[name]
	return v, ok
}

func (ev *Evaluator) setUserNs(name string, v value.Value) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.userNs[name] = v
}

func (ev *Evaluator) snapshotUserNs() map[string]value.Value {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	snap := make(map[string]value.Value, len(ev.userNs))
	for k, v := range ev.userNs {
		snap[k] = v
	}
	return snap
}

func (ev *Evaluator) addPrint(s string) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.prints = append(ev.prints, s)
}

func (ev *Evaluator) addToolCall(tc types.ToolCall) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.toolCalls = append(ev.toolCalls, tc)
}

// bumpIteration increments the call-site counter and errors once the
// configured loop limit is exceeded (spec.md §4.3). A pmap fork delegates to
// its parent so the limit bounds the whole program, not each worker alone.
func (ev *Evaluator) bumpIteration() error {
	if ev.parent != nil {
		return ev.parent.bumpIteration()
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.iterations++
	if ev.iterations > ev.opts.LoopLimit {
		return errs.New(errs.KindLoopLimitExceeded, "iteration limit exceeded", map[string]any{"limit": ev.opts.LoopLimit})
	}
	return nil
}

func (ev *Evaluator) iterationCount() int {
	if ev.parent != nil {
		return ev.parent.iterationCount()
	}
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return ev.iterations
}

// forkForPmap builds a worker-scoped Evaluator for one pmap item: it shares
// ctx/memory/turn-history/tools/opts with ev but gets its own userNs,
// prints, and tool-call log so concurrent workers never race on them, and
// its own builtins registry so println/tool/... close over the fork rather
// than ev. The loop-limit counter still delegates to ev (see bumpIteration).
func (ev *Evaluator) forkForPmap() *Evaluator {
	w := &Evaluator{
		ctx:         ev.ctx,
		memoryStart: ev.memoryStart,
		turnHistory: ev.turnHistory,
		tools:       ev.tools,
		opts:        ev.opts,
		userNs:      make(map[string]value.Value),
		parent:      ev,
	}
	w.builtins = w.buildBuiltins()
	return w
}

// EvalProgram evaluates every top-level form in order, in a single root
// environment, returning the last form's value (or the sentinel that
// short-circuited evaluation).
func (ev *Evaluator) EvalProgram(forms []value.Node) (value.Value, error) {
	root := ev.rootEnv()
	var result value.Value = value.Nil
	for _, f := range forms {
		v, err := ev.Eval(f, root)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		result = v
	}
	return result, nil
}

// Eval dispatches on the concrete core-AST node type.
func (ev *Evaluator) Eval(node value.Node, env *lexicalEnv) (value.Value, error) {
	switch n := node.(type) {
	case analyzer.Literal:
		return n.Val, nil
	case analyzer.LocalRef:
		v, ok := env.Lookup(n.Name)
		if !ok {
			return value.Nil, errs.New(errs.KindUnboundVar, "unbound var: "+n.Name, map[string]any{"name": n.Name})
		}
		return v, nil
	case analyzer.NsSym:
		return ev.evalNsSym(n)
	case analyzer.TurnHistory:
		return ev.turnHistory[n.N-1], nil
	case analyzer.Quote:
		return n.Val, nil
	case analyzer.If:
		return ev.evalIf(n, env)
	case analyzer.Do:
		return ev.evalBody(n.Forms, env)
	case analyzer.Let:
		return ev.evalLet(n, env)
	case analyzer.Fn:
		return ev.evalFn(n, env), nil
	case analyzer.Def:
		return ev.evalDef(n, env)
	case analyzer.And:
		return ev.evalAnd(n, env)
	case analyzer.Or:
		return ev.evalOr(n, env)
	case analyzer.Call:
		return ev.evalCall(n, env)
	case analyzer.Loop:
		return ev.evalLoop(n, env)
	case analyzer.Recur:
		return ev.evalRecur(n, env)
	case analyzer.VectorExpr:
		return ev.evalVectorExpr(n, env)
	case analyzer.MapExpr:
		return ev.evalMapExpr(n, env)
	case analyzer.SetExpr:
		return ev.evalSetExpr(n, env)
	default:
		return value.Nil, errs.New(errs.KindAnalysisError, "unknown core-AST node", nil)
	}
}

func (ev *Evaluator) evalBody(forms []value.Node, env *lexicalEnv) (value.Value, error) {
	var result value.Value = value.Nil
	for _, f := range forms {
		v, err := ev.Eval(f, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		result = v
	}
	return result, nil
}

func (ev *Evaluator) evalIf(n analyzer.If, env *lexicalEnv) (value.Value, error) {
	c, err := ev.Eval(n.Cond, env)
	if err != nil {
		return value.Nil, err
	}
	if c.IsSentinel() {
		return c, nil
	}
	if c.Truthy() {
		return ev.Eval(n.Then, env)
	}
	return ev.Eval(n.Else, env)
}

func (ev *Evaluator) evalLet(n analyzer.Let, env *lexicalEnv) (value.Value, error) {
	v, err := ev.Eval(n.Expr, env)
	if err != nil {
		return value.Nil, err
	}
	if v.IsSentinel() {
		return v, nil
	}
	child := newChildEnv(env)
	if err := bindParam(n.Param, v, child); err != nil {
		return value.Nil, err
	}
	return ev.Eval(n.Body, child)
}

// recurSignal carries a recur's rebinding values up to the nearest
// enclosing evalLoop as an in-band error. The analyzer guarantees every
// Recur node has an enclosing Loop, so it never escapes to a caller.
type recurSignal struct{ args []value.Value }

func (*recurSignal) Error() string { return "recur outside of loop" }

func (ev *Evaluator) evalLoop(n analyzer.Loop, env *lexicalEnv) (value.Value, error) {
	vals := make([]value.Value, len(n.Inits))
	for i, init := range n.Inits {
		v, err := ev.Eval(init, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		vals[i] = v
	}
	for {
		if err := ev.bumpIteration(); err != nil {
			return value.Nil, err
		}
		iter := newChildEnv(env)
		for i, p := range n.Params {
			if err := bindParam(p, vals[i], iter); err != nil {
				return value.Nil, err
			}
		}
		v, err := ev.evalBody(n.Body, iter)
		if err != nil {
			rs, ok := err.(*recurSignal)
			if !ok {
				return value.Nil, err
			}
			if len(rs.args) != len(n.Params) {
				return value.Nil, errs.New(errs.KindArityError, "recur argument count must match loop bindings", map[string]any{"expected": len(n.Params), "got": len(rs.args)})
			}
			vals = rs.args
			continue
		}
		return v, nil
	}
}

func (ev *Evaluator) evalRecur(n analyzer.Recur, env *lexicalEnv) (value.Value, error) {
	args := make([]value.Value, len(n.Args))
	for i, a := range n.Args {
		v, err := ev.Eval(a, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		args[i] = v
	}
	return value.Nil, &recurSignal{args: args}
}

func (ev *Evaluator) evalFn(n analyzer.Fn, env *lexicalEnv) value.Value {
	return value.ClosureV(&value.Closure{
		Params:            n.Params,
		Variadic:          n.Variadic,
		Body:              n.Body,
		Env:               env,
		NamespaceSnapshot: ev.snapshotUserNs(),
		Name:              n.Name,
	})
}

func (ev *Evaluator) evalDef(n analyzer.Def, env *lexicalEnv) (value.Value, error) {
	v, err := ev.Eval(n.Expr, env)
	if err != nil {
		return value.Nil, err
	}
	if v.IsSentinel() {
		return v, nil
	}
	// A def-bound closure's own namespace snapshot is captured before the
	// binding exists (evalFn runs as part of evaluating n.Expr, above), so a
	// recursive call to its own def name would otherwise fail to resolve.
	// Patch the closure's private snapshot with its own name so
	// self-recursion works without exposing later def/defn forms to it.
	if v.Kind == value.KindClosure {
		v.Closure.NamespaceSnapshot[n.Name] = v
	}
	ev.setUserNs(n.Name, v)
	return v, nil
}

func (ev *Evaluator) evalAnd(n analyzer.And, env *lexicalEnv) (value.Value, error) {
	result := value.Bool(true)
	for _, a := range n.Args {
		v, err := ev.Eval(a, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		result = v
		if !v.Truthy() {
			return v, nil
		}
	}
	return result, nil
}

func (ev *Evaluator) evalOr(n analyzer.Or, env *lexicalEnv) (value.Value, error) {
	result := value.Bool(false)
	for _, a := range n.Args {
		v, err := ev.Eval(a, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		result = v
		if v.Truthy() {
			return v, nil
		}
	}
	return result, nil
}

func (ev *Evaluator) evalVectorExpr(n analyzer.VectorExpr, env *lexicalEnv) (value.Value, error) {
	items := make([]value.Value, 0, len(n.Items))
	for _, it := range n.Items {
		v, err := ev.Eval(it, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		items = append(items, v)
	}
	return value.Vector(items), nil
}

func (ev *Evaluator) evalMapExpr(n analyzer.MapExpr, env *lexicalEnv) (value.Value, error) {
	m := value.NewOrderedMap()
	for _, pair := range n.Pairs {
		k, err := ev.Eval(pair[0], env)
		if err != nil {
			return value.Nil, err
		}
		if k.IsSentinel() {
			return k, nil
		}
		v, err := ev.Eval(pair[1], env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		m.Set(k, v)
	}
	return value.Map(m), nil
}

func (ev *Evaluator) evalSetExpr(n analyzer.SetExpr, env *lexicalEnv) (value.Value, error) {
	s := value.NewOrderedSet()
	for _, it := range n.Items {
		v, err := ev.Eval(it, env)
		if err != nil {
			return value.Nil, err
		}
		if v.IsSentinel() {
			return v, nil
		}
		s.Add(v)
	}
	return value.Set(s), nil
}

func (ev *Evaluator) evalNsSym(n analyzer.NsSym) (value.Value, error) {
	switch n.Namespace {
	case "ctx":
		if v, ok := ev.ctx.GetFlex(value.Keyword(n.Key)); ok {
			return v, nil
		}
		return value.Nil, nil
	case "memory":
		if v, ok := ev.memoryStart.GetFlex(value.Keyword(n.Key)); ok {
			return v, nil
		}
		return value.Nil, nil
	case "tool":
		name := n.Key
		return value.BuiltinV(&value.Builtin{
			Name:  "tool/" + name,
			Arity: value.ArityVariadic,
			Call: func(args []value.Value) (value.Value, error) {
				return ev.invokeTool(name, args)
			},
		}), nil
	default:
		return value.Nil, errs.New(errs.KindUnboundVar, "unknown namespace: "+n.Namespace, map[string]any{"ns": n.Namespace})
	}
}

func (ev *Evaluator) invokeTool(name string, args []value.Value) (value.Value, error) {
	if ev.tools == nil {
		return value.Nil, errs.New(errs.KindToolError, "no tool executor configured", map[string]any{"tool": name})
	}
	start := time.Now()
	result, err := ev.tools.InvokeTool(name, args)
	tc := types.ToolCall{Name: name, Args: args, Result: result, Err: err, Duration: time.Since(start)}
	ev.addToolCall(tc)
	if err != nil {
		return value.Nil, errs.New(errs.KindToolError, err.Error(), map[string]any{"tool": name})
	}
	return result, nil
}
