package iterate

import (
	"log/slog"

	"github.com/utkarsh5026/pkgiter/batch"
	"github.com/utkarsh5026/pkgiter/built"
	"github.com/utkarsh5026/pkgiter/internal/logging"
	"github.com/utkarsh5026/pkgiter/pool"
	"github.com/utkarsh5026/pkgiter/progress"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// Option configures a strategy.
type Option func(*config)

// config is resolved once per strategy call from its options; it is never
// shared between calls.
type config struct {
	log              *slog.Logger
	progress         progress.Factory
	store            built.Store
	label            string
	concurrency      int
	batchConcurrency int
	policy           batch.Policy
	ratePerSecond    float64
	rateBurst        int
	onStart          func(pkg workspace.Package)
	onEnd            func(pkg workspace.Package, err error)
}

func newConfig(opts ...Option) config {
	cfg := config{
		log:              logging.Discard(),
		progress:         progress.Nop(),
		concurrency:      pool.DefaultConcurrency,
		batchConcurrency: batch.DefaultConcurrency,
		policy:           batch.StopOnFailure,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(log *slog.Logger) Option {
	return func(cfg *config) {
		if log != nil {
			cfg.log = log
		}
	}
}

// WithProgress sets the factory for the run's progress tracker.
// By default progress is not reported.
func WithProgress(factory progress.Factory) Option {
	return func(cfg *config) {
		if factory != nil {
			cfg.progress = factory
		}
	}
}

// WithStore sets the built-state store consulted and updated for the
// built label.
func WithStore(store built.Store) Option {
	return func(cfg *config) {
		cfg.store = store
	}
}

// WithBuiltLabel skips packages already built under label and marks every
// package that succeeds. It requires WithStore.
func WithBuiltLabel(label string) Option {
	return func(cfg *config) {
		cfg.label = label
	}
}

// WithConcurrency sets how many packages Parallel runs at once (default 50).
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.concurrency = n
		}
	}
}

// WithBatchConcurrency sets how many packages of one level Batched runs at
// once (default 4).
func WithBatchConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.batchConcurrency = n
		}
	}
}

// WithFailurePolicy decides whether Batched keeps going past a failed level.
func WithFailurePolicy(p batch.Policy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithRateLimit caps how fast packages are started: perSecond launches per
// second with bursts of up to burst. Non-positive values disable the limit.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *config) {
		cfg.ratePerSecond, cfg.rateBurst = perSecond, burst
	}
}

// WithOnStart registers a hook called on the package's goroutine right
// before its task starts.
func WithOnStart(fn func(pkg workspace.Package)) Option {
	return func(cfg *config) {
		cfg.onStart = fn
	}
}

// WithOnEnd registers a hook called once a started package's task returned,
// with the package's error (nil on success). Packages that never start are
// not reported.
func WithOnEnd(fn func(pkg workspace.Package, err error)) Option {
	return func(cfg *config) {
		cfg.onEnd = fn
	}
}

// poolOptions translates the run's options into pool options for a pool
// running one thunk per package of pkgs.
func (cfg config) poolOptions(concurrency int, pkgs []workspace.Package) []pool.TaskPoolOption {
	opts := []pool.TaskPoolOption{
		pool.WithConcurrency(concurrency),
		pool.WithRateLimit(cfg.ratePerSecond, cfg.rateBurst),
	}
	if cfg.onStart != nil {
		opts = append(opts, pool.WithBeforeTaskStart(func(i int) { cfg.onStart(pkgs[i]) }))
	}
	if cfg.onEnd != nil {
		opts = append(opts, pool.WithOnTaskEnd(func(i int, err error) { cfg.onEnd(pkgs[i], err) }))
	}
	return opts
}

func (cfg config) batchOptions() []batch.RunOption {
	opts := []batch.RunOption{
		batch.WithPolicy(cfg.policy),
		batch.WithRateLimit(cfg.ratePerSecond, cfg.rateBurst),
	}
	if cfg.onStart != nil {
		opts = append(opts, batch.WithOnStart(cfg.onStart))
	}
	if cfg.onEnd != nil {
		opts = append(opts, batch.WithOnEnd(cfg.onEnd))
	}
	return opts
}
