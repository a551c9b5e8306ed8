package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/utkarsh5026/pkgiter/pool"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// DefaultConcurrency is the per-level ceiling used when none is given.
const DefaultConcurrency = 4

// ErrSkipped marks a package that was not run because a dependency failed
// or was itself skipped.
var ErrSkipped = errors.New("skipped: a dependency did not succeed")

// Policy decides what happens to later levels once a package fails.
type Policy int

const (
	// StopOnFailure lets the failing level drain and starts no later level.
	StopOnFailure Policy = iota
	// SkipDependents keeps going, skipping only packages that (transitively)
	// depend on a failed package.
	SkipDependents
)

func (p Policy) String() string {
	switch p {
	case StopOnFailure:
		return "stop"
	case SkipDependents:
		return "skip-dependents"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy maps the names printed by Policy.String back to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "stop":
		return StopOnFailure, nil
	case "skip-dependents":
		return SkipDependents, nil
	default:
		return StopOnFailure, fmt.Errorf("unknown failure policy %q", s)
	}
}

// UnitFunc processes one package.
type UnitFunc[R any] func(ctx context.Context, pkg workspace.Package) (R, error)

// RunOption configures Run.
type RunOption func(*runConfig)

type runConfig struct {
	policy   Policy
	onSkip   func(pkg workspace.Package, err error)
	onStart  func(pkg workspace.Package)
	onEnd    func(pkg workspace.Package, err error)
	poolOpts []pool.TaskPoolOption
}

// WithPolicy selects the failure policy. The default is StopOnFailure.
func WithPolicy(p Policy) RunOption {
	return func(cfg *runConfig) {
		cfg.policy = p
	}
}

// WithOnSkip registers a hook called for every package skipped under
// SkipDependents. The error wraps ErrSkipped and names the dependency that
// caused the skip.
func WithOnSkip(fn func(pkg workspace.Package, err error)) RunOption {
	return func(cfg *runConfig) {
		cfg.onSkip = fn
	}
}

// WithOnStart registers a hook called right before a package starts.
func WithOnStart(fn func(pkg workspace.Package)) RunOption {
	return func(cfg *runConfig) {
		cfg.onStart = fn
	}
}

// WithOnEnd registers a hook called once a started package returned, with
// its error. Under SkipDependents the hook still sees the package's own
// failure.
func WithOnEnd(fn func(pkg workspace.Package, err error)) RunOption {
	return func(cfg *runConfig) {
		cfg.onEnd = fn
	}
}

// WithRateLimit throttles package launches across all levels.
func WithRateLimit(perSecond float64, burst int) RunOption {
	return func(cfg *runConfig) {
		cfg.poolOpts = append(cfg.poolOpts, pool.WithRateLimit(perSecond, burst))
	}
}

// Run executes levels in order with at most concurrency packages of one
// level in flight. Level k settles completely before level k+1 starts.
// Results are index-aligned to pkgs, which must hold every package found in
// levels.
//
// Under StopOnFailure the failing level's error is returned once the level
// has drained. Under SkipDependents every runnable package still runs and the
// first failure observed is returned after the last level.
func Run[R any](
	ctx context.Context,
	pkgs []workspace.Package,
	levels [][]workspace.Package,
	concurrency int,
	fn UnitFunc[R],
	opts ...RunOption,
) ([]R, error) {
	var cfg runConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}

	position := make(map[string]int, len(pkgs))
	for i, p := range pkgs {
		position[p.Name] = i
	}

	results := make([]R, len(pkgs))

	// One pool serves every level so a rate limit spans the whole run.
	// Levels run one after another, so the hooks read the current level
	// without locking.
	var (
		current   []workspace.Package
		levelErrs []error
	)
	poolOpts := append([]pool.TaskPoolOption{pool.WithConcurrency(concurrency)}, cfg.poolOpts...)
	if cfg.onStart != nil {
		poolOpts = append(poolOpts, pool.WithBeforeTaskStart(func(i int) {
			cfg.onStart(current[i])
		}))
	}
	if cfg.onEnd != nil {
		poolOpts = append(poolOpts, pool.WithOnTaskEnd(func(i int, err error) {
			if err == nil {
				err = levelErrs[i]
			}
			cfg.onEnd(current[i], err)
		}))
	}
	tp := pool.NewTaskPool[R](poolOpts...)

	var (
		mu       sync.Mutex
		firstErr error
		failed   = map[string]bool{}
	)

	for _, level := range levels {
		runnable := make([]workspace.Package, 0, len(level))
		for _, pkg := range level {
			if cause, blocked := blockedBy(pkg, failed); blocked {
				failed[pkg.Name] = true
				if cfg.onSkip != nil {
					cfg.onSkip(pkg, fmt.Errorf("%w: %s", ErrSkipped, cause))
				}
				continue
			}
			runnable = append(runnable, pkg)
		}

		current, levelErrs = runnable, make([]error, len(runnable))
		thunks := make([]pool.Thunk[R], len(runnable))
		for i, pkg := range runnable {
			thunks[i] = func(ctx context.Context) (R, error) {
				v, err := fn(ctx, pkg)
				if err == nil || cfg.policy != SkipDependents {
					return v, err
				}
				levelErrs[i] = err
				mu.Lock()
				failed[pkg.Name] = true
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				var zero R
				return zero, nil
			}
		}

		out, err := tp.Run(ctx, thunks)
		if err != nil {
			return nil, err
		}
		for i, pkg := range runnable {
			idx, ok := position[pkg.Name]
			if !ok {
				return nil, fmt.Errorf("package %s is not part of the run", pkg.Name)
			}
			results[idx] = out[i]
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

func blockedBy(pkg workspace.Package, failed map[string]bool) (string, bool) {
	for _, dep := range pkg.Dependencies {
		if failed[dep] {
			return dep, true
		}
	}
	return "", false
}
