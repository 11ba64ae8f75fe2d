package lisp

import (
	"ptc-lisp/internal/types"
	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/value"
)

// RunOpts bundles one program execution's inputs (spec.md §4.6's sandbox
// contract, minus wall-clock/heap enforcement — that's pkg/sandbox's job;
// this package assumes it is already running inside an isolated worker).
type RunOpts struct {
	Ctx            *value.OrderedMap
	Memory         *value.OrderedMap
	TurnHistory    [3]value.Value
	Tools          types.ToolExecutor
	Eval           Opts
	FloatPrecision *int
}

// Run parses, analyzes, and evaluates src in one step.
func Run(src string, opts RunOpts) (types.EvalResult, error) {
	forms, err := reader.ParseAll(src)
	if err != nil {
		return types.EvalResult{}, err
	}
	nodes, err := analyzer.New().AnalyzeProgram(forms)
	if err != nil {
		return types.EvalResult{}, err
	}
	return RunNodes(nodes, opts)
}

// RunNodes evaluates an already-analyzed program and applies the memory
// contract (spec.md §4.5) to its outermost result.
func RunNodes(nodes []value.Node, opts RunOpts) (types.EvalResult, error) {
	ev := NewEvaluator(opts.Ctx, opts.Memory, opts.TurnHistory, opts.Tools, opts.Eval)
	result, err := ev.EvalProgram(nodes)
	if err != nil {
		return types.EvalResult{}, err
	}

	memStart := opts.Memory
	if memStart == nil {
		memStart = value.NewOrderedMap()
	}

	out := types.EvalResult{
		Metrics:   types.Metrics{Iterations: ev.iterationCount()},
		Prints:    ev.prints,
		ToolCalls: ev.toolCalls,
	}

	switch result.Kind {
	case value.KindFail:
		out.Sentinel = "fail"
		reasonV, _ := result.Payload.Map.GetFlex(value.Keyword("reason"))
		out.FailReason = toDisplayString(reasonV)
		if msgV, ok := result.Payload.Map.GetFlex(value.Keyword("message")); ok {
			out.FailMessage = toDisplayString(msgV)
		}
		out.Memory = memStart
		out.MemoryDelta = value.NewOrderedMap()
		return out, nil
	case value.KindReturn:
		out.Sentinel = "return"
		result = *result.Payload
	}

	ret, delta, mem := ApplyMemoryContract(result, memStart)
	if opts.FloatPrecision != nil {
		ret = RoundFloats(ret, *opts.FloatPrecision)
	}
	out.Return = ret
	out.MemoryDelta = delta
	out.Memory = mem
	return out, nil
}

func toDisplayString(v value.Value) string {
	switch v.Kind {
	case value.KindString, value.KindKeyword, value.KindSymbol:
		return v.Str
	default:
		return value.Print(v)
	}
}
