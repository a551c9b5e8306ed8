package pool

import (
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the ceiling used when WithConcurrency is not given.
const DefaultConcurrency = 50

// TaskPoolOption is a functional option for configuring a pool.
type TaskPoolOption func(*taskPoolConfig)

type taskPoolConfig struct {
	concurrency     int
	rateLimiter     *rate.Limiter
	beforeTaskStart func(index int)
	onTaskEnd       func(index int, err error)
}

func newConfig(opts ...TaskPoolOption) taskPoolConfig {
	cfg := taskPoolConfig{
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithConcurrency sets the maximum number of thunks in flight at once.
// Values below 1 are ignored.
func WithConcurrency(count int) TaskPoolOption {
	return func(cfg *taskPoolConfig) {
		if count > 0 {
			cfg.concurrency = count
		}
	}
}

// WithRateLimit throttles how fast thunks are launched.
// perSecond is the sustained launch rate and burst the number of launches
// allowed back to back. Useful when every task hits the same registry or API.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 launches/sec, bursts of 5
func WithRateLimit(perSecond float64, burst int) TaskPoolOption {
	return func(cfg *taskPoolConfig) {
		if perSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithBeforeTaskStart registers a hook called right before the thunk at
// index starts. It runs on the thunk's goroutine.
func WithBeforeTaskStart(fn func(index int)) TaskPoolOption {
	return func(cfg *taskPoolConfig) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called after the thunk at index returned,
// with its error (nil on success).
func WithOnTaskEnd(fn func(index int, err error)) TaskPoolOption {
	return func(cfg *taskPoolConfig) {
		cfg.onTaskEnd = fn
	}
}
