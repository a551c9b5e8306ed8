package iterate

import (
	"context"

	"github.com/utkarsh5026/pkgiter/pool"
	"github.com/utkarsh5026/pkgiter/progress"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// Parallel runs task for up to WithConcurrency packages at once (default 50).
// Each package gets its own child tracker, created paused and resumed only
// once the package actually starts.
func Parallel[R any](pkgs []workspace.Package, opts ...Option) Strategy[R] {
	cfg := newConfig(opts...)

	return func(ctx context.Context, task TaskFunc[R]) ([]R, error) {
		remaining, err := cfg.filter(ctx, pkgs)
		if err != nil {
			return nil, err
		}
		if len(remaining) == 0 {
			return []R{}, nil
		}

		tracker := cfg.progress("parallel", len(remaining))
		defer tracker.Finish()

		thunks := make([]pool.Thunk[R], len(remaining))
		for i, pkg := range remaining {
			child := pausedChild(tracker, pkg.Name)
			thunks[i] = func(ctx context.Context) (R, error) {
				return trackedUnit(ctx, cfg, pkg, child, task)
			}
		}

		return pool.NewTaskPool[R](cfg.poolOptions(cfg.concurrency, remaining)...).Run(ctx, thunks)
	}
}

func pausedChild(parent progress.Tracker, name string) progress.Tracker {
	child := parent.NewChild(name)
	child.Pause()
	return child
}
