package pool

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// TaskPool runs ordered lists of thunks under a concurrency ceiling.
// A TaskPool holds only configuration; every Run call owns its own
// scheduling state, so one pool can serve concurrent Run calls.
//
// Type parameters:
//   - R: The result type
type TaskPool[R any] struct {
	concurrency     int
	rateLimiter     *rate.Limiter
	beforeTaskStart func(index int)
	onTaskEnd       func(index int, err error)
}

// NewTaskPool creates a pool with the given options.
// Default configuration: concurrency = DefaultConcurrency, no rate limit, no hooks.
func NewTaskPool[R any](opts ...TaskPoolOption) *TaskPool[R] {
	cfg := newConfig(opts...)
	return &TaskPool[R]{
		concurrency:     cfg.concurrency,
		rateLimiter:     cfg.rateLimiter,
		beforeTaskStart: cfg.beforeTaskStart,
		onTaskEnd:       cfg.onTaskEnd,
	}
}

// Concurrency reports the configured ceiling.
func (tp *TaskPool[R]) Concurrency() int {
	return tp.concurrency
}

// Run executes thunks with at most min(concurrency, len(thunks)) of them in
// flight and returns their results in input order.
//
// The first min(concurrency, len(thunks)) thunks are always started. After
// the first failure no thunk beyond that initial window is started. Thunks
// already running are allowed to finish and Run returns only once all of
// them have. The first failure observed is the one returned. On failure the
// returned slice is nil.
func (tp *TaskPool[R]) Run(ctx context.Context, thunks []Thunk[R]) ([]R, error) {
	if len(thunks) == 0 {
		return []R{}, nil
	}

	var (
		g        errgroup.Group
		failed   atomic.Bool
		mu       sync.Mutex
		firstErr error
		results  = make([]R, len(thunks))
		window   = min(tp.concurrency, len(thunks))
	)

	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
		failed.Store(true)
	}

	g.SetLimit(window)

	for idx, thunk := range thunks {
		refill := idx >= window
		if refill && failed.Load() {
			break
		}
		if err := tp.admit(ctx); err != nil {
			fail(err)
			break
		}

		// Inside the initial window Go never blocks. Beyond it, Go waits
		// for a free slot, which may be the slot of a thunk that just
		// failed.
		g.Go(func() error {
			if refill {
				if failed.Load() {
					debugLog("skipping task %d: pool already failed", idx)
					return nil
				}
				if err := ctx.Err(); err != nil {
					fail(err)
					return nil
				}
			}
			value, err := tp.execute(ctx, idx, thunk)
			if err != nil {
				debugLog("task %d failed: %v", idx, err)
				fail(err)
				return nil
			}
			results[idx] = value
			return nil
		})
	}

	_ = g.Wait()

	if failed.Load() {
		return nil, firstErr
	}
	return results, nil
}

// admit blocks until the next thunk may be launched.
func (tp *TaskPool[R]) admit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tp.rateLimiter != nil {
		return tp.rateLimiter.Wait(ctx)
	}
	return nil
}

// Run is a shortcut for NewTaskPool[R](WithConcurrency(count)).Run(ctx, thunks).
func Run[R any](ctx context.Context, thunks []Thunk[R], count int) ([]R, error) {
	return NewTaskPool[R](WithConcurrency(count)).Run(ctx, thunks)
}
