// Package pool provides a small, generic, bounded task pool.
//
// The primary type is TaskPool[R], which runs an ordered list of thunks
// (zero-argument tasks returning R) with a hard ceiling on how many are in
// flight at once. Results come back index-aligned to the input, whatever
// order the thunks finish in.
//
// # Basic Usage
//
//	thunks := []pool.Thunk[int]{
//	    func(ctx context.Context) (int, error) { return 1, nil },
//	    func(ctx context.Context) (int, error) { return 2, nil },
//	}
//	results, err := pool.NewTaskPool[int](pool.WithConcurrency(2)).Run(ctx, thunks)
//
// # Error Handling
//
// The pool uses drain-then-fail semantics. The first min(concurrency, n)
// thunks are always started. When a thunk fails, no further thunks are
// started, but thunks that are already running are left alone and the call
// returns only after every one of them has returned. Exactly one error is
// returned as is: the first failure observed. A failed run never returns
// partial results.
//
// Running thunks are never cancelled by the pool. A context that is done
// stops new launches the same way a failure does.
//
// Panics inside a thunk are recovered and reported as *PanicError.
//
// # Finalizers
//
// Finally runs a cleanup callback exactly once after an operation, whether it
// succeeded, failed or panicked, without changing the operation's outcome.
//
// # Configuration Options
//
//   - WithConcurrency(n): ceiling on in-flight thunks (default: 50)
//   - WithRateLimit(perSecond, burst): throttle thunk launches
//   - WithBeforeTaskStart(fn) / WithOnTaskEnd(fn): observation hooks
package pool
