package lisp

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ptc-lisp/internal/errs"
	"ptc-lisp/pkg/value"
)

var errPmapSentinel = errors.New("pmap: worker returned a sentinel")

// registerConcurrencyBuiltins wires pmap (spec.md §4.4, §5): bounded-fan-out
// parallel map over a function. Result order always matches input order
// regardless of completion order. The first worker to return a Return/Fail
// sentinel wins the whole call — its sentinel is propagated and every other
// result is discarded, matching "(pmap f v) = (mapv f v) in value and
// order" plus the sentinel-propagation invariant. Each item runs against
// its own forked Evaluator (see forkForPmap) so prints and tool-call log
// entries never interleave across workers; once every worker has finished,
// their logs are merged into ev's in input-index order, not completion
// order, per spec.md §5 ("tool-call logs from workers merge into the main
// log deterministically by input index, not completion time").
func (ev *Evaluator) registerConcurrencyBuiltins(add adder) {
	add("pmap", func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Nil, arityError("pmap", len(args))
		}
		fn := args[0]
		items, err := seqOf(args[1])
		if err != nil {
			return value.Nil, err
		}
		results := make([]value.Value, len(items))
		workers := make([]*Evaluator, len(items))

		limit := ev.opts.PmapMaxConcurrency
		if limit <= 0 {
			limit = 1
		}
		timeout := ev.opts.PmapTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		var sentinelOnce sync.Once
		var sentinel value.Value

		for i, it := range items {
			i, it := i, it
			w := ev.forkForPmap()
			workers[i] = w
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				v, err := w.apply(fn, []value.Value{it})
				if err != nil {
					return err
				}
				if v.IsSentinel() {
					sentinelOnce.Do(func() { sentinel = v })
					cancel()
					return errPmapSentinel
				}
				results[i] = v
				return nil
			})
		}

		waitErr := g.Wait()

		ev.mu.Lock()
		for _, w := range workers {
			if w == nil {
				continue
			}
			ev.prints = append(ev.prints, w.prints...)
			ev.toolCalls = append(ev.toolCalls, w.toolCalls...)
		}
		ev.mu.Unlock()

		if waitErr != nil {
			if errors.Is(waitErr, errPmapSentinel) {
				return sentinel, nil
			}
			if errors.Is(waitErr, context.DeadlineExceeded) {
				return value.Nil, errs.New(errs.KindTimeout, "pmap exceeded its timeout", map[string]any{"timeout_ms": timeout.Milliseconds()})
			}
			return value.Nil, waitErr
		}
		return value.Vector(results), nil
	})
}
