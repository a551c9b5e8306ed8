// Package iterate runs a task against every package of a workspace.
//
// Three strategies are provided, all built on the bounded pool in package
// pool:
//
//   - ForEach runs packages one at a time, in order.
//   - Parallel runs up to a configurable number of packages at once.
//   - Batched groups packages into dependency levels and runs the levels
//     in order, bounding concurrency within each level.
//
// Each strategy is created from the packages and its options and returns a
// Strategy, which is then called with the task:
//
//	run := iterate.Parallel[string](pkgs, iterate.WithConcurrency(8))
//	out, err := run(ctx, func(ctx context.Context, pkg workspace.Package, t progress.Tracker) (string, error) {
//	    return runner.RunScript(ctx, pkg, "build")
//	})
//
// With WithBuiltLabel, packages already built under the label are skipped and
// every package that succeeds is marked built.
//
// All strategies share the pool's drain-then-fail behaviour: after the first
// failure nothing new starts, started tasks finish, and the caller gets either
// every result in input order or exactly one error.
package iterate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utkarsh5026/pkgiter/built"
	"github.com/utkarsh5026/pkgiter/pool"
	"github.com/utkarsh5026/pkgiter/progress"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// TaskFunc is the work done for one package. The tracker belongs to the run
// and may be shared with other packages.
type TaskFunc[R any] func(ctx context.Context, pkg workspace.Package, t progress.Tracker) (R, error)

// Strategy applies a task to the packages it was created for. Results are
// index-aligned with the packages that were not filtered out.
type Strategy[R any] func(ctx context.Context, task TaskFunc[R]) ([]R, error)

// filter applies the built label, if any.
func (cfg config) filter(ctx context.Context, pkgs []workspace.Package) ([]workspace.Package, error) {
	remaining, _, err := built.Filter(ctx, cfg.store, pkgs, cfg.label, cfg.log)
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

// runAndMark runs task for pkg and, on success, marks pkg built under the
// configured label. A failed mark fails the package.
func runAndMark[R any](
	ctx context.Context,
	cfg config,
	pkg workspace.Package,
	t progress.Tracker,
	task TaskFunc[R],
) (R, error) {
	cfg.log.Debug("package started", slog.String("package", pkg.Name))

	value, err := task(ctx, pkg, t)
	if err != nil {
		cfg.log.Debug("package failed", slog.String("package", pkg.Name), slog.Any("error", err))
		return value, err
	}

	if cfg.label != "" {
		if err := cfg.store.MarkBuilt(ctx, pkg, cfg.label); err != nil {
			var zero R
			return zero, fmt.Errorf("mark %s built under %q: %w", pkg.Name, cfg.label, err)
		}
	}

	cfg.log.Debug("package finished", slog.String("package", pkg.Name))
	return value, nil
}

// trackedUnit runs one package on its own child tracker: the child is resumed
// when the package starts and always completes one unit of work, whatever
// the outcome.
func trackedUnit[R any](
	ctx context.Context,
	cfg config,
	pkg workspace.Package,
	child progress.Tracker,
	task TaskFunc[R],
) (R, error) {
	child.Resume()
	return pool.Finally(
		func() (R, error) { return runAndMark(ctx, cfg, pkg, child, task) },
		func() {
			child.CompleteWork(1)
			child.Finish()
		},
	)
}
