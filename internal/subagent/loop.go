// Package subagent implements the iterative LLM<->runtime cycle: a mission
// string drives repeated rounds of prompt assembly, an LLMCallback
// invocation, code extraction, sandboxed evaluation, and budget-checked
// continuation, terminating in a Step result.
package subagent

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"ptc-lisp/internal/config"
	"ptc-lisp/internal/errs"
	"ptc-lisp/internal/llm"
	"ptc-lisp/internal/logging"
	"ptc-lisp/internal/types"
	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/lisp"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/sandbox"
	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

// RetryPolicy bounds the exponential backoff applied to transient
// LLMCallback errors.
type RetryPolicy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
}

// Run drives one mission to completion against cb, using system as the
// fixed system-prompt text: a pre-loaded template string whose content is
// entirely the caller's concern — the loop never inspects or modifies it.
func Run(ctx context.Context, mission Mission, system string, cb llm.Callback, retry RetryPolicy, opts RunOpts) (Step, error) {
	missionID := uuid.NewString()
	logging.SubAgent("mission %s: starting (max_turns=%d, tools=%d)", missionID, mission.MaxTurns, len(mission.Tools))

	// A failed upstream step short-circuits the whole mission: no prompt is
	// assembled and no LLM call is made.
	if opts.Upstream != nil && opts.Upstream.Fail != nil {
		up := opts.Upstream.Fail
		logging.SubAgent("mission %s: chained failure from upstream (%s)", missionID, up.Reason)
		step := Step{
			MissionID: missionID,
			Memory:    opts.Memory,
			Fail:      &FailInfo{Reason: "chained_failure", Message: up.Reason + ": " + up.Message},
		}
		return step, errs.New(errs.KindChainedFailure, "upstream step failed", map[string]any{"reason": up.Reason})
	}

	// The signature's left side binds the input context; a mismatch there is
	// fatal before the first turn (spec.md §7: validation_error on input).
	if verr := validateInputCtx(mission.Signature, opts.Ctx); verr != nil {
		step := Step{MissionID: missionID, Memory: opts.Memory, Fail: &FailInfo{Reason: "validation_error", Message: verr.Error()}}
		return step, verr
	}

	var step Step
	var err error
	if mission.MaxTurns == 1 && len(mission.Tools) == 0 && mission.OutputMode == OutputModePTCLisp {
		step, err = runSingleShot(ctx, missionID, mission, system, cb, retry, opts)
	} else {
		step, err = runGeneralLoop(ctx, missionID, mission, system, cb, retry, opts)
	}
	step.MissionID = missionID
	return step, err
}

// returnSigOf picks what the final return value is validated against: a
// function signature's right side, or the signature itself for any other
// shape.
func returnSigOf(sig *signature.Type) *signature.Type {
	if sig != nil && sig.Kind == signature.KindFunc {
		return sig.Return
	}
	return sig
}

// validateInputCtx checks the input context against a function signature's
// parameter list. Non-function signatures constrain only the return value.
func validateInputCtx(sig *signature.Type, ctx *value.OrderedMap) error {
	if sig == nil || sig.Kind != signature.KindFunc {
		return nil
	}
	if ctx == nil {
		ctx = value.NewOrderedMap()
	}
	for i, name := range sig.ParamNames {
		pv, ok := ctx.GetFlex(value.Keyword(name))
		if !ok {
			if sig.Params[i].Optional {
				continue
			}
			return errs.New(errs.KindValidationError, "missing required context entry ctx."+name, map[string]any{"path": "ctx." + name})
		}
		if err := signature.Validate(sig.Params[i], pv, "ctx."+name); err != nil {
			return err
		}
	}
	return nil
}

func runSingleShot(ctx context.Context, missionID string, mission Mission, system string, cb llm.Callback, retry RetryPolicy, opts RunOpts) (Step, error) {
	start := time.Now()
	collector := collectorOrNoop(opts.Collector)

	runCtx := ctx
	if mission.MissionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, mission.MissionTimeout)
		defer cancel()
	}
	asMissionTimeout := func(err error) error {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return errs.New(errs.KindMissionTimeout, "mission_timeout", map[string]any{"turn": 1})
		}
		return err
	}

	collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateAssembling})
	userMsg := assembleUserMessage(mission, opts.Ctx, "")

	collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateAwaitingLLM})
	resp, usage, err := callWithRetry(runCtx, cb, llm.Request{System: system, Messages: []llm.Message{{Role: llm.RoleUser, Content: userMsg}}}, retry)
	trace := TraceEntry{TurnIndex: 1}
	if err != nil {
		err = asMissionTimeout(err)
		trace.Err = err
		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateDoneFail, Detail: err.Error()})
		return Step{Usage: usageFrom(usage, 1, start), Turns: 1, Trace: []TraceEntry{trace}}, err
	}
	trace.RawResponse = resp.Content

	collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateExtracting})
	code, err := ExtractCode(resp.Content)
	if err != nil {
		trace.Err = err
		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateDoneFail, Detail: err.Error()})
		return Step{Usage: usageFrom(usage, 1, start), Turns: 1, Trace: []TraceEntry{trace}}, err
	}
	trace.ExtractedCode = code

	collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateEvaluating})
	result, err := evalTurn(runCtx, code, opts, mission)
	if err != nil {
		err = asMissionTimeout(err)
		trace.Err = err
		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateDoneFail, Detail: err.Error()})
		return Step{Usage: usageFrom(usage, 1, start), Turns: 1, Trace: []TraceEntry{trace}}, err
	}
	trace.Return = result.Return
	trace.Sentinel = result.Sentinel
	trace.FailReason = result.FailReason
	trace.FailMessage = result.FailMessage
	trace.Prints = result.Prints
	trace.ToolCalls = result.ToolCalls

	step := Step{
		Memory:      result.Memory,
		MemoryDelta: result.MemoryDelta,
		Usage:       usageFrom(usage, 1, start),
		Turns:       1,
		Trace:       []TraceEntry{trace},
	}
	step.Usage.MemoryBytes = result.Metrics.MemoryBytes
	if mission.Signature != nil {
		step.SignatureStr = signature.Describe(mission.Signature)
	}

	if result.Sentinel == "fail" {
		step.Fail = &FailInfo{Reason: result.FailReason, Message: result.FailMessage}
		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateDoneFail, Detail: result.FailReason})
		return step, nil
	}
	if mission.Signature != nil {
		if verr := signature.Validate(returnSigOf(mission.Signature), result.Return, "return"); verr != nil {
			step.Fail = &FailInfo{Reason: "validation_error", Message: verr.Error()}
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateDoneFail, Detail: verr.Error()})
			return step, nil
		}
	}
	step.Return = result.Return
	collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: 1, State: StateDoneOK})
	return step, nil
}

// loopState holds everything that mutates turn-to-turn in the general
// loop.
type loopState struct {
	turnIndex    int
	memory       *value.OrderedMap
	turnHistory  [3]value.Value
	usage        Usage
	trace        []TraceEntry
	toleratedRun int // consecutive tolerated sandbox errors fed back to the LLM
}

func runGeneralLoop(ctx context.Context, missionID string, mission Mission, system string, cb llm.Callback, retry RetryPolicy, opts RunOpts) (Step, error) {
	start := time.Now()
	collector := collectorOrNoop(opts.Collector)

	// mission_timeout supersedes individual turn timeouts: the LLM call and
	// the sandbox worker both run under runCtx, so expiry mid-turn aborts
	// whatever is in flight (spec.md §5).
	runCtx := ctx
	cancel := func() {}
	if mission.MissionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, mission.MissionTimeout)
	}
	defer cancel()

	st := &loopState{
		turnIndex:   1,
		memory:      opts.Memory,
		turnHistory: opts.TurnHistory,
	}
	if st.memory == nil {
		st.memory = value.NewOrderedMap()
	}
	feedback := ""

	for {
		if runCtx.Err() != nil {
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: "mission_timeout"})
			return finalStep(st, mission, nil), errs.New(errs.KindMissionTimeout, "mission_timeout", map[string]any{"turn": st.turnIndex})
		}

		if mission.MaxTurns > 0 && st.turnIndex > mission.MaxTurns {
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: "max_turns_exceeded"})
			return finalStep(st, mission, nil), errs.New(errs.KindMaxTurnsExceeded, "max_turns_exceeded", map[string]any{"max_turns": mission.MaxTurns})
		}
		if mission.TurnBudget > 0 && st.usage.Turns >= mission.TurnBudget {
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: "turn_budget_exhausted"})
			return finalStep(st, mission, nil), errs.New(errs.KindTurnBudgetExhausted, "turn_budget_exhausted", map[string]any{"turn_budget": mission.TurnBudget})
		}

		if mission.RetryTurns >= 0 && mission.MaxTurns > 0 && st.turnIndex == mission.MaxTurns-mission.RetryTurns {
			feedback = mustReturnFeedback(mission, opts.Ctx)
		}

		logging.SubAgent("turn %d: assembling user message", st.turnIndex)
		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateAssembling})
		userMsg := assembleUserMessage(mission, opts.Ctx, feedback)

		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateAwaitingLLM})
		resp, callUsage, err := callWithRetry(runCtx, cb, llm.Request{System: system, Messages: []llm.Message{{Role: llm.RoleUser, Content: userMsg}}}, retry)
		st.usage.Turns++
		if callUsage != nil {
			st.usage.InputTokens += callUsage.InputTokens
			st.usage.OutputTokens += callUsage.OutputTokens
		}
		trace := TraceEntry{TurnIndex: st.turnIndex}
		if err != nil {
			if runCtx.Err() != nil && ctx.Err() == nil {
				err = errs.New(errs.KindMissionTimeout, "mission_timeout", map[string]any{"turn": st.turnIndex})
			}
			trace.Err = err
			st.trace = append(st.trace, trace)
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: err.Error()})
			return finalStep(st, mission, nil), err
		}
		trace.RawResponse = resp.Content

		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateExtracting})
		code, err := ExtractCode(resp.Content)
		if err != nil {
			trace.Err = err
			st.trace = append(st.trace, trace)
			if st.toleratedRun >= mission.RetryTurns {
				collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: err.Error()})
				return finalStep(st, mission, nil), err
			}
			st.toleratedRun++
			feedback = retryFeedback(mission, opts.Ctx, "Your response contained no PTC-Lisp code. Reply with a single fenced clojure block.")
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateContinue, Detail: err.Error()})
			st.turnIndex++
			continue
		}
		trace.ExtractedCode = code

		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateEvaluating})
		result, evalErr := evalTurn(runCtx, code, RunOpts{Ctx: opts.Ctx, Memory: st.memory, TurnHistory: st.turnHistory, SandboxOpts: opts.SandboxOpts}, mission)
		if evalErr != nil {
			if runCtx.Err() != nil && ctx.Err() == nil {
				evalErr = errs.New(errs.KindMissionTimeout, "mission_timeout", map[string]any{"turn": st.turnIndex})
			}
			trace.Err = evalErr
			st.trace = append(st.trace, trace)
			kind := errs.KindOf(evalErr)
			fatal := kind.Fatal() ||
				(kind == errs.KindMemoryExceeded && mission.MemoryStrategy != config.MemoryStrategyRollback)
			if fatal || st.toleratedRun >= mission.RetryTurns {
				collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: evalErr.Error()})
				return finalStep(st, mission, nil), evalErr
			}
			// Under rollback the turn's delta was never applied (the worker
			// aborted before the memory contract ran), so continuing with
			// st.memory untouched is exactly the discard the strategy asks
			// for.
			st.toleratedRun++
			feedback = retryFeedback(mission, opts.Ctx, evalErr.Error())
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateContinue, Detail: evalErr.Error()})
			st.turnIndex++
			continue
		}
		st.toleratedRun = 0
		feedback = ""
		if result.Metrics.MemoryBytes > st.usage.MemoryBytes {
			st.usage.MemoryBytes = result.Metrics.MemoryBytes
		}
		trace.Return = result.Return
		trace.Sentinel = result.Sentinel
		trace.FailReason = result.FailReason
		trace.FailMessage = result.FailMessage
		trace.Prints = result.Prints
		trace.ToolCalls = result.ToolCalls
		st.trace = append(st.trace, trace)

		st.memory = result.Memory
		pushTurnHistory(&st.turnHistory, result.Return)

		if result.Sentinel == "fail" {
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: result.FailReason})
			return finalStep(st, mission, nil), nil
		}

		// A bare non-sentinel value is only meaningful in single-shot
		// mode; in the general loop it is just this turn's intermediate
		// output, so only an explicit (return ...) ends the mission.
		if result.Sentinel == "return" {
			if mission.Signature != nil {
				if verr := signature.Validate(returnSigOf(mission.Signature), result.Return, "return"); verr != nil {
					if st.toleratedRun >= mission.RetryTurns {
						collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneFail, Detail: verr.Error()})
						return finalStep(st, mission, nil), verr
					}
					st.toleratedRun++
					feedback = retryFeedback(mission, opts.Ctx, "Return failed validation: "+verr.Error())
					collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateContinue, Detail: verr.Error()})
					st.turnIndex++
					continue
				}
			}
			step := finalStep(st, mission, &result.Return)
			step.Usage.DurationMS = time.Since(start).Milliseconds()
			collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateDoneOK})
			return step, nil
		}

		collector.Emit(TraceEvent{MissionID: missionID, TurnIndex: st.turnIndex, State: StateContinue})
		st.turnIndex++
	}
}

func finalStep(st *loopState, mission Mission, ret *value.Value) Step {
	step := Step{
		Memory: st.memory,
		Usage:  st.usage,
		Turns:  st.turnIndex,
		Trace:  st.trace,
	}
	if mission.Signature != nil {
		step.SignatureStr = signature.Describe(mission.Signature)
	}
	if len(st.trace) > 0 {
		last := st.trace[len(st.trace)-1]
		if last.Sentinel == "fail" {
			step.Fail = &FailInfo{Reason: last.FailReason, Message: last.FailMessage}
		}
	}
	if ret != nil {
		step.Return = *ret
	}
	return step
}

// retryFeedback renders the per-turn error-feedback string. A caller-supplied
// template wins (expanded against ctx like the mission itself); the cause is
// always appended so the LLM sees what went wrong.
func retryFeedback(mission Mission, ctx *value.OrderedMap, cause string) string {
	if mission.RetryFeedbackTemplate != "" {
		return expandTemplate(mission.RetryFeedbackTemplate, ctx) + "\n" + cause
	}
	return "Previous turn failed: " + cause
}

// mustReturnFeedback builds the strong feedback string sent once the loop
// enters the must-return phase (turn_index == max_turns - retry_turns). It
// is informational only; enforcement stays in the budget checks above.
func mustReturnFeedback(mission Mission, ctx *value.OrderedMap) string {
	if mission.MustReturnFeedbackTemplate != "" {
		return expandTemplate(mission.MustReturnFeedbackTemplate, ctx)
	}
	return "You are nearly out of turns. Do not explore further tools: call (return ...) with your final answer, or (fail {:reason ... :message ...}) if you cannot complete the mission."
}

func pushTurnHistory(h *[3]value.Value, v value.Value) {
	h[2] = h[1]
	h[1] = h[0]
	h[0] = v
}

func evalTurn(ctx context.Context, code string, opts RunOpts, mission Mission) (types.EvalResult, error) {
	forms, err := reader.ParseAll(code)
	if err != nil {
		return types.EvalResult{}, err
	}
	nodes, err := analyzer.New().AnalyzeProgram(forms)
	if err != nil {
		return types.EvalResult{}, err
	}
	sOpts := opts.SandboxOpts
	return sandbox.Run(ctx, sandbox.Request{
		Nodes:       nodes,
		Ctx:         opts.Ctx,
		Memory:      opts.Memory,
		TurnHistory: opts.TurnHistory,
		Tools:       executor{tools: mission.Tools},
		Opts: sandbox.Opts{
			Timeout:          sOpts.Timeout,
			HeapCeilingBytes: sOpts.HeapCeilingBytes,
			FloatPrecision:   mission.FloatPrecision,
			Eval: lisp.Opts{
				LoopLimit:          sOpts.LoopLimit,
				PrintCharBudget:    sOpts.PrintCharBudget,
				PmapTimeout:        sOpts.PmapTimeout,
				PmapMaxConcurrency: sOpts.PmapMaxConcurrency,
			},
		},
	})
}

func callWithRetry(ctx context.Context, cb llm.Callback, req llm.Request, policy RetryPolicy) (llm.Response, *llm.Usage, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = 250 * time.Millisecond
	}
	factor := policy.BackoffFactor
	if factor <= 0 {
		factor = 2.0
	}
	maxDelay := policy.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := cb.Call(ctx, req)
		if err == nil {
			return resp, resp.Usage, nil
		}
		lastErr = err
		callErr, ok := err.(*llm.CallError)
		if !ok || !callErr.Retryable() || attempt == maxAttempts {
			return llm.Response{}, nil, errs.New(errs.KindLLMError, err.Error(), map[string]any{"attempt": attempt})
		}
		logging.LLM("transient error on attempt %d/%d: %v, backing off %s", attempt, maxAttempts, err, delay)
		select {
		case <-ctx.Done():
			return llm.Response{}, nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(math.Min(float64(maxDelay), float64(delay)*factor))
	}
	return llm.Response{}, nil, errs.New(errs.KindLLMError, lastErr.Error(), nil)
}

func usageFrom(u *llm.Usage, turns int, start time.Time) Usage {
	out := Usage{Turns: turns, DurationMS: time.Since(start).Milliseconds()}
	if u != nil {
		out.InputTokens = u.InputTokens
		out.OutputTokens = u.OutputTokens
	}
	return out
}
