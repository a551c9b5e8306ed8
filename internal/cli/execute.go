package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/utkarsh5026/pkgiter/built"
	"github.com/utkarsh5026/pkgiter/internal/config"
	"github.com/utkarsh5026/pkgiter/iterate"
	"github.com/utkarsh5026/pkgiter/progress"
	"github.com/utkarsh5026/pkgiter/script"
	"github.com/utkarsh5026/pkgiter/workspace"
)

// addStrategyFlags registers the flags shared by run and exec.
func addStrategyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("strategy", "s", "", "sequential, parallel or batched (default parallel)")
	f.IntP("concurrency", "j", 0, "maximum packages running at once for the parallel strategy (default 50)")
	f.Int("batch-concurrency", 0, "maximum packages running at once within a batched level (default 4)")
	f.String("built", "", "skip packages already built under this label and mark successes")
	f.Bool("silent", false, "capture command output instead of streaming it")
	f.String("npm-client", "", "package manager used to run scripts (default npm)")
	f.StringSlice("scope", nil, "only run the named packages")
	f.Bool("skip-dependents", false, "batched: keep going after a failure, skipping only its dependents")
	f.Float64("rate", 0, "maximum package launches per second (default unlimited)")
	f.Int("rate-burst", 0, "launches allowed back to back under --rate (default 1)")
}

// packageTask is the per-package work of a command.
type packageTask func(ctx context.Context, pkg workspace.Package) (string, error)

type outcome struct {
	took time.Duration
	err  error
}

// recorder collects per-package outcomes for the summary from the run's
// start and end hooks.
type recorder struct {
	mu       sync.Mutex
	started  map[string]time.Time
	outcomes map[string]outcome
}

func newRecorder() *recorder {
	return &recorder{started: map[string]time.Time{}, outcomes: map[string]outcome{}}
}

func (r *recorder) start(pkg workspace.Package) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[pkg.Name] = time.Now()
}

func (r *recorder) end(pkg workspace.Package, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[pkg.Name] = outcome{took: time.Since(r.started[pkg.Name]), err: err}
}

func (r *recorder) lookup(name string) (outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.outcomes[name]
	return o, ok
}

func (s *session) newRunner(cmd *cobra.Command) *script.Runner {
	return &script.Runner{
		Client: s.cfg.NPMClient,
		Silent: s.cfg.Silent,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Log:    s.log,
	}
}

// iterate runs task over pkgs with the configured strategy and prints a
// summary whatever the outcome.
func (s *session) iterate(cmd *cobra.Command, pkgs []workspace.Package, task packageTask) error {
	rec := newRecorder()
	opts := []iterate.Option{
		iterate.WithLogger(s.log),
		iterate.WithConcurrency(s.cfg.Concurrency),
		iterate.WithBatchConcurrency(s.cfg.BatchConcurrency),
		iterate.WithFailurePolicy(s.cfg.Policy()),
		iterate.WithRateLimit(s.cfg.RateLimit, s.cfg.RateBurst),
		iterate.WithOnStart(rec.start),
		iterate.WithOnEnd(rec.end),
	}
	if s.cfg.Built != "" {
		opts = append(opts,
			iterate.WithStore(built.NewFileStore(s.fs)),
			iterate.WithBuiltLabel(s.cfg.Built),
		)
	}
	// Streamed output and a redrawn bar would overwrite each other.
	if s.cfg.Silent && isTerminal(cmd.ErrOrStderr()) {
		opts = append(opts, iterate.WithProgress(progress.Bar(cmd.ErrOrStderr())))
	}

	var strategy iterate.Strategy[string]
	switch s.cfg.Strategy {
	case config.StrategySequential:
		strategy = iterate.ForEach[string](pkgs, opts...)
	case config.StrategyBatched:
		strategy = iterate.Batched[string](pkgs, opts...)
	default:
		strategy = iterate.Parallel[string](pkgs, opts...)
	}

	start := time.Now()
	_, err := strategy(cmd.Context(), func(ctx context.Context, pkg workspace.Package, _ progress.Tracker) (string, error) {
		return task(ctx, pkg)
	})

	s.log.Info("run finished",
		slog.String("strategy", s.cfg.Strategy),
		slog.Int("packages", len(pkgs)),
		slog.Duration("took", time.Since(start)),
		slog.Any("error", err),
	)

	if renderErr := renderSummary(cmd.OutOrStdout(), pkgs, rec, s.cfg.Built); renderErr != nil && err == nil {
		err = fmt.Errorf("render summary: %w", renderErr)
	}
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
