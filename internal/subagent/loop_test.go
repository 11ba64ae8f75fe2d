package subagent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptc-lisp/internal/errs"
	"ptc-lisp/internal/llm"
	"ptc-lisp/internal/subagent"
	"ptc-lisp/pkg/signature"
	"ptc-lisp/pkg/value"
)

func defaultSandboxOpts() subagent.SandboxDefaults {
	return subagent.SandboxDefaults{
		Timeout:            time.Second,
		HeapCeilingBytes:   64 * 1024 * 1024,
		LoopLimit:          10_000,
		PrintCharBudget:    4096,
		PmapMaxConcurrency: 4,
	}
}

func TestSingleShotFastPath(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(return (+ 1 2))\n```")
	mission := subagent.Mission{
		Template:   "Add two numbers for {{name}}.",
		MaxTurns:   1,
		OutputMode: subagent.OutputModePTCLisp,
	}
	ctx := value.MapOf(value.Keyword("name"), value.String("Ada"))
	step, err := subagent.Run(context.Background(), mission, "system prompt", cb, subagent.RetryPolicy{}, subagent.RunOpts{
		Ctx:         ctx,
		SandboxOpts: defaultSandboxOpts(),
	})
	require.NoError(t, err)
	assert.Equal(t, value.Int(3), step.Return)
	assert.Equal(t, 1, step.Turns)
	require.Len(t, step.Trace, 1)
	assert.Contains(t, step.Trace[0].RawResponse, "return")
}

func TestSingleShotFailSentinel(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(fail {:reason :bad-input :message \"nope\"})\n```")
	mission := subagent.Mission{Template: "do it", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.NoError(t, err)
	require.NotNil(t, step.Fail)
	assert.Equal(t, "bad-input", step.Fail.Reason)
	assert.Equal(t, "nope", step.Fail.Message)
}

func TestGeneralLoopContinuesUntilReturn(t *testing.T) {
	cb := llm.NewScripted(
		"```clojure\n(+ 2 3)\n```",
		"```clojure\n(return (+ *1 1))\n```",
	)
	mission := subagent.Mission{
		Template:   "iterate",
		MaxTurns:   5,
		RetryTurns: 1,
		OutputMode: subagent.OutputModePTCLisp,
		Tools:      subagent.ToolMap{"noop": {Name: "noop", Invoke: func(args []value.Value) (value.Value, error) { return value.Nil, nil }}},
	}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), step.Return)
	assert.Equal(t, 2, cb.CallCount())
}

func TestGeneralLoopMaxTurnsExceeded(t *testing.T) {
	cb := llm.NewScripted(
		"```clojure\n(+ 0 1)\n```",
		"```clojure\n(+ 1 1)\n```",
	)
	mission := subagent.Mission{
		Template:   "iterate forever",
		MaxTurns:   2,
		RetryTurns: 0,
		OutputMode: subagent.OutputModePTCLisp,
		Tools:      subagent.ToolMap{"noop": {Name: "noop", Invoke: func(args []value.Value) (value.Value, error) { return value.Nil, nil }}},
	}
	_, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.Error(t, err)
	assert.Equal(t, errs.KindMaxTurnsExceeded, errs.KindOf(err))
}

func TestSingleShotSignatureValidationFailure(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(return \"not a number\")\n```")
	sig, err := signature.Parse(":int")
	require.NoError(t, err)
	mission := subagent.Mission{Template: "go", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp, Signature: sig}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.NoError(t, err)
	require.NotNil(t, step.Fail)
	assert.Equal(t, "validation_error", step.Fail.Reason)
}

type recordingCollector struct {
	states []subagent.State
}

func (c *recordingCollector) Emit(ev subagent.TraceEvent) {
	c.states = append(c.states, ev.State)
}

func TestTraceCollectorSeesEveryStateTransition(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(return 1)\n```")
	mission := subagent.Mission{Template: "go", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp}
	rec := &recordingCollector{}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{
		SandboxOpts: defaultSandboxOpts(),
		Collector:   rec,
	})
	require.NoError(t, err)
	assert.Equal(t, value.Int(1), step.Return)
	assert.Equal(t, []subagent.State{
		subagent.StateAssembling,
		subagent.StateAwaitingLLM,
		subagent.StateExtracting,
		subagent.StateEvaluating,
		subagent.StateDoneOK,
	}, rec.states)
}

func TestNoCodeResponseFedBack(t *testing.T) {
	cb := llm.NewScripted(
		"Let me think about this first.",
		"```clojure\n(return :done)\n```",
	)
	mission := subagent.Mission{
		Template:   "go",
		MaxTurns:   4,
		RetryTurns: 1,
		OutputMode: subagent.OutputModePTCLisp,
		Tools:      subagent.ToolMap{"noop": {Name: "noop", Invoke: func(args []value.Value) (value.Value, error) { return value.Nil, nil }}},
	}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Keyword("done"), step.Return)
	require.Equal(t, 2, cb.CallCount())
	assert.Contains(t, cb.Requests()[1].Messages[0].Content, "no PTC-Lisp code")
}

func TestChainedFailureShortCircuits(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(return 1)\n```")
	mission := subagent.Mission{Template: "go", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp}
	upstream := &subagent.Step{Fail: &subagent.FailInfo{Reason: "bad_input", Message: "x missing"}}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{
		SandboxOpts: defaultSandboxOpts(),
		Upstream:    upstream,
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindChainedFailure, errs.KindOf(err))
	require.NotNil(t, step.Fail)
	assert.Equal(t, "chained_failure", step.Fail.Reason)
	assert.Equal(t, 0, cb.CallCount(), "a chained failure must not reach the LLM")
}

func TestInputContextValidationIsFatal(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(return 1)\n```")
	sig, err := signature.Parse("(n :int) -> :int")
	require.NoError(t, err)
	mission := subagent.Mission{Template: "go", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp, Signature: sig}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{
		Ctx:         value.MapOf(value.Keyword("n"), value.String("not an int")),
		SandboxOpts: defaultSandboxOpts(),
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindValidationError, errs.KindOf(err))
	require.NotNil(t, step.Fail)
	assert.Equal(t, 0, cb.CallCount())
}

func TestFuncSignatureValidatesReturnSide(t *testing.T) {
	cb := llm.NewScripted("```clojure\n(return (* ctx/n 2))\n```")
	sig, err := signature.Parse("(n :int) -> :int")
	require.NoError(t, err)
	mission := subagent.Mission{Template: "double it", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp, Signature: sig}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{}, subagent.RunOpts{
		Ctx:         value.MapOf(value.Keyword("n"), value.Int(21)),
		SandboxOpts: defaultSandboxOpts(),
	})
	require.NoError(t, err)
	assert.Nil(t, step.Fail)
	assert.Equal(t, value.Int(42), step.Return)
}

func TestMissionTimeoutAbortsMidTurn(t *testing.T) {
	slow := llm.CallbackFunc(func(ctx context.Context, req llm.Request) (llm.Response, error) {
		select {
		case <-ctx.Done():
			return llm.Response{}, &llm.CallError{Reason: llm.ReasonTimeout, Message: "canceled"}
		case <-time.After(500 * time.Millisecond):
			return llm.Response{Content: "```clojure\n(return 1)\n```"}, nil
		}
	})
	mission := subagent.Mission{
		Template:       "go",
		MaxTurns:       3,
		MissionTimeout: 30 * time.Millisecond,
		OutputMode:     subagent.OutputModePTCLisp,
		Tools:          subagent.ToolMap{"noop": {Name: "noop", Invoke: func(args []value.Value) (value.Value, error) { return value.Nil, nil }}},
	}
	start := time.Now()
	_, err := subagent.Run(context.Background(), mission, "sys", slow, subagent.RetryPolicy{}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.Error(t, err)
	assert.Equal(t, errs.KindMissionTimeout, errs.KindOf(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestRetryOnTransientLLMError(t *testing.T) {
	cb := llm.NewScripted(
		&llm.CallError{Reason: llm.ReasonRateLimit, Message: "slow down"},
		"```clojure\n(return :ok)\n```",
	)
	mission := subagent.Mission{Template: "go", MaxTurns: 1, OutputMode: subagent.OutputModePTCLisp}
	step, err := subagent.Run(context.Background(), mission, "sys", cb, subagent.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond}, subagent.RunOpts{SandboxOpts: defaultSandboxOpts()})
	require.NoError(t, err)
	assert.Equal(t, value.Keyword("ok"), step.Return)
}
