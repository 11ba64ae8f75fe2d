package sandbox_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/analyzer"
	"ptc-lisp/pkg/lisp"
	"ptc-lisp/pkg/reader"
	"ptc-lisp/pkg/sandbox"
	"ptc-lisp/pkg/value"
)

// TestMain verifies no goroutine outlives the test binary: Run abandons its
// worker goroutine on the timeout and memory-breach paths (Go cannot
// force-kill a goroutine), so every abort test below is built so the
// abandoned worker still terminates on its own shortly after the abort —
// a sleeping tool returns, or the loop limit trips. goleak's retry window
// absorbs that tail.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func nodesFor(t *testing.T, src string) []value.Node {
	t.Helper()
	forms, err := reader.ParseAll(src)
	require.NoError(t, err)
	nodes, err := analyzer.New().AnalyzeProgram(forms)
	require.NoError(t, err)
	return nodes
}

func baseOpts() sandbox.Opts {
	return sandbox.Opts{
		Timeout:          time.Second,
		HeapCeilingBytes: 64 * 1024 * 1024,
		Eval:             lisp.Opts{LoopLimit: 10_000, PrintCharBudget: 4096, PmapMaxConcurrency: 4},
	}
}

// sleepyTools blocks every tool invocation for d, simulating a slow host
// tool so a program can outsleep the sandbox's wall-clock budget.
type sleepyTools struct{ d time.Duration }

func (s sleepyTools) InvokeTool(name string, args []value.Value) (value.Value, error) {
	time.Sleep(s.d)
	return value.Nil, nil
}

func TestRunReturnsResult(t *testing.T) {
	res, err := sandbox.Run(context.Background(), sandbox.Request{
		Nodes: nodesFor(t, `(+ 1 2 3)`),
		Opts:  baseOpts(),
	})
	require.NoError(t, err)
	assert.Equal(t, value.Int(6), res.Return)
	assert.True(t, res.Metrics.WallClock > 0)
}

func TestRunTimesOut(t *testing.T) {
	opts := baseOpts()
	opts.Timeout = 50 * time.Millisecond
	start := time.Now()
	res, err := sandbox.Run(context.Background(), sandbox.Request{
		Nodes: nodesFor(t, `(tool/sleep)`),
		Tools: sleepyTools{d: 200 * time.Millisecond},
		Opts:  opts,
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
	assert.Less(t, time.Since(start), 150*time.Millisecond, "the abort must land within a small grace window past the timeout")
	assert.Empty(t, res.Prints, "a timed-out evaluation must not deliver partial side-effect logs")
}

func TestRunDeliversNoPartialLogsOnTimeout(t *testing.T) {
	src := `(do (println "before") (tool/sleep) (println "after"))`
	opts := baseOpts()
	opts.Timeout = 20 * time.Millisecond
	res, err := sandbox.Run(context.Background(), sandbox.Request{
		Nodes: nodesFor(t, src),
		Tools: sleepyTools{d: 200 * time.Millisecond},
		Opts:  opts,
	})
	require.Error(t, err)
	assert.Nil(t, res.Prints)
	assert.Nil(t, res.ToolCalls)
}

func TestRunLoopLimitExceeded(t *testing.T) {
	src := `(loop [i 0] (recur (inc i)))`
	opts := baseOpts()
	opts.Eval.LoopLimit = 100
	_, err := sandbox.Run(context.Background(), sandbox.Request{
		Nodes: nodesFor(t, src),
		Opts:  opts,
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindLoopLimitExceeded, errs.KindOf(err))
}
