// Package sandbox runs one PTC-Lisp program in an isolated worker goroutine
// and enforces the two hard limits a program execution must never exceed
// (spec.md §4.6): wall-clock timeout and a heap-growth ceiling. Evaluation
// itself (pkg/lisp) has no idea it is being bounded this way; Run is the
// only place that owns a worker's lifecycle.
package sandbox

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"ptc-lisp/internal/errs"
	"ptc-lisp/internal/logging"
	"ptc-lisp/internal/types"
	"ptc-lisp/pkg/lisp"
	"ptc-lisp/pkg/value"
)

// Opts bounds one sandboxed evaluation.
type Opts struct {
	Timeout          time.Duration
	HeapCeilingBytes int64
	Eval             lisp.Opts
	FloatPrecision   *int

	// MemSamplePeriod controls how often the watchdog samples
	// runtime.MemStats while the worker is running. Zero picks a default.
	MemSamplePeriod time.Duration
}

// Request bundles one program's inputs (spec.md §4.6's "core_ast, ctx,
// starting_memory, tool_executor, turn_history, opts").
type Request struct {
	Nodes       []value.Node
	Ctx         *value.OrderedMap
	Memory      *value.OrderedMap
	TurnHistory [3]value.Value
	Tools       types.ToolExecutor
	Opts        Opts
}

// workerOutcome is what the goroutine running the evaluation hands back
// over its result channel; never read by the caller after a timeout or
// memory abort races it, since the channel is buffered by 1 and simply
// drained by the garbage collector if nobody ever receives.
type workerOutcome struct {
	result types.EvalResult
	err    error
}

// Run evaluates one program in its own goroutine, aborting it if it runs
// past Opts.Timeout or the process's heap grows past Opts.HeapCeilingBytes
// while the worker is in flight. On abort, prints and tool_calls observed
// by the worker before the abort are discarded — the caller learns only
// that evaluation failed, never a partial trace of what it did (spec.md
// §4.6: "abnormal termination cannot affect the caller's state").
func Run(ctx context.Context, req Request) (types.EvalResult, error) {
	start := time.Now()
	workerID := uuid.NewString()
	timeout := req.Opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := make(chan workerOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- workerOutcome{err: errs.New(errs.KindAnalysisError, "evaluator panicked", map[string]any{"recovered": r})}
			}
		}()
		res, err := lisp.RunNodes(req.Nodes, lisp.RunOpts{
			Ctx:            req.Ctx,
			Memory:         req.Memory,
			TurnHistory:    req.TurnHistory,
			Tools:          req.Tools,
			Eval:           req.Opts.Eval,
			FloatPrecision: req.Opts.FloatPrecision,
		})
		outcome <- workerOutcome{result: res, err: err}
	}()

	watchdog := newMemoryWatchdog(req.Opts.HeapCeilingBytes, req.Opts.MemSamplePeriod)
	defer watchdog.stop()

	select {
	case o := <-outcome:
		watchdog.stop()
		if o.err != nil {
			logging.Sandbox("worker %s: evaluation failed after %s: %v", workerID, time.Since(start), o.err)
			return types.EvalResult{}, o.err
		}
		o.result.Metrics.WallClock = time.Since(start)
		o.result.Metrics.MemoryBytes = watchdog.peak()
		return o.result, nil

	case <-watchdog.breached:
		logging.Sandbox("worker %s: evaluation aborted: heap ceiling %d bytes exceeded after %s", workerID, req.Opts.HeapCeilingBytes, time.Since(start))
		return types.EvalResult{}, errs.New(errs.KindMemoryExceeded, "heap ceiling exceeded", map[string]any{"ceiling_bytes": req.Opts.HeapCeilingBytes, "worker_id": workerID})

	case <-runCtx.Done():
		logging.Sandbox("worker %s: evaluation timed out after %s", workerID, time.Since(start))
		return types.EvalResult{}, errs.New(errs.KindTimeout, "evaluation exceeded wall-clock budget", map[string]any{"timeout_ms": timeout.Milliseconds(), "worker_id": workerID})
	}

	// Unreachable: one of the three select cases above always fires. The
	// worker goroutine itself is abandoned to the runtime on the timeout
	// and memory-breach paths — Go gives no way to force-kill a goroutine,
	// so the sandbox's isolation guarantee is "the caller moves on", not
	// "the worker stops" (see DESIGN.md).
}

// memoryWatchdog polls process-wide heap usage while a worker runs and
// signals breached once it crosses ceilingBytes. It is necessarily a
// process-wide approximation: Go has no per-goroutine heap accounting, so
// a concurrently running sibling evaluation (there should be at most one
// per sandbox.Run call by construction — spec.md §5) would be misattributed
// if callers ever ran two Run calls against the same process concurrently
// without raising the ceiling accordingly.
type memoryWatchdog struct {
	breached chan struct{}
	done     chan struct{}

	mu       sync.Mutex
	peakSeen int64
}

func newMemoryWatchdog(ceilingBytes int64, period time.Duration) *memoryWatchdog {
	w := &memoryWatchdog{breached: make(chan struct{}), done: make(chan struct{})}
	if ceilingBytes <= 0 {
		close(w.done)
		return w
	}
	if period <= 0 {
		period = 10 * time.Millisecond
	}
	var baseline uint64
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	baseline = m.HeapAlloc

	go func() {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ticker.C:
				var cur runtime.MemStats
				runtime.ReadMemStats(&cur)
				if cur.HeapAlloc <= baseline {
					continue
				}
				grown := int64(cur.HeapAlloc - baseline)
				w.mu.Lock()
				if grown > w.peakSeen {
					w.peakSeen = grown
				}
				w.mu.Unlock()
				if grown > ceilingBytes {
					close(w.breached)
					return
				}
			}
		}
	}()
	return w
}

func (w *memoryWatchdog) peak() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.peakSeen
}

func (w *memoryWatchdog) stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
