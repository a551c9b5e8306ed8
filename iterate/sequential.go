package iterate

import (
	"context"

	"github.com/utkarsh5026/pkgiter/pool"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// ForEach runs task for one package at a time, in input order. Every package
// shares the run's tracker, which advances by one unit per package whatever
// its outcome.
func ForEach[R any](pkgs []workspace.Package, opts ...Option) Strategy[R] {
	cfg := newConfig(opts...)

	return func(ctx context.Context, task TaskFunc[R]) ([]R, error) {
		remaining, err := cfg.filter(ctx, pkgs)
		if err != nil {
			return nil, err
		}
		if len(remaining) == 0 {
			return []R{}, nil
		}

		tracker := cfg.progress("forEach", len(remaining))
		defer tracker.Finish()

		thunks := make([]pool.Thunk[R], len(remaining))
		for i, pkg := range remaining {
			thunks[i] = func(ctx context.Context) (R, error) {
				return pool.Finally(
					func() (R, error) { return runAndMark(ctx, cfg, pkg, tracker, task) },
					func() { tracker.CompleteWork(1) },
				)
			}
		}

		return pool.NewTaskPool[R](cfg.poolOptions(1, remaining)...).Run(ctx, thunks)
	}
}
