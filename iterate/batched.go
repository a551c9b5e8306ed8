package iterate

import (
	"context"
	"log/slog"

	"github.com/utkarsh5026/pkgiter/batch"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// Batched runs packages level by level: every package of a level settles
// before any package of the next level starts, and at most
// WithBatchConcurrency packages of a level run at once (default 4).
//
// What happens after a failure is set by WithFailurePolicy; by default no
// later level is started.
func Batched[R any](pkgs []workspace.Package, opts ...Option) Strategy[R] {
	cfg := newConfig(opts...)

	return func(ctx context.Context, task TaskFunc[R]) ([]R, error) {
		remaining, err := cfg.filter(ctx, pkgs)
		if err != nil {
			return nil, err
		}
		if len(remaining) == 0 {
			return []R{}, nil
		}

		levels, err := batch.Levels(remaining)
		if err != nil {
			return nil, err
		}
		cfg.log.Debug("computed batch levels",
			slog.Int("levels", len(levels)),
			slog.Int("packages", len(remaining)),
		)

		tracker := cfg.progress("batched", len(remaining))
		defer tracker.Finish()

		var unit batch.UnitFunc[R] = func(ctx context.Context, pkg workspace.Package) (R, error) {
			return trackedUnit(ctx, cfg, pkg, pausedChild(tracker, pkg.Name), task)
		}

		opts := append(cfg.batchOptions(), batch.WithOnSkip(func(pkg workspace.Package, err error) {
			cfg.log.Warn("package skipped", slog.String("package", pkg.Name), slog.Any("reason", err))
		}))
		return batch.Run(ctx, remaining, levels, cfg.batchConcurrency, unit, opts...)
	}
}
