package iterate

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/utkarsh5026/pkgiter/batch"
	"github.com/utkarsh5026/pkgiter/built"
	"github.com/utkarsh5026/pkgiter/progress"
	"github.com/utkarsh5026/pkgiter/workspace"
)

func packages(names ...string) []workspace.Package {
	pkgs := make([]workspace.Package, len(names))
	for i, n := range names {
		pkgs[i] = workspace.Package{Name: n, Location: "/ws/packages/" + n}
	}
	return pkgs
}

func echo(ctx context.Context, pkg workspace.Package, t progress.Tracker) (string, error) {
	return "built:" + pkg.Name, nil
}

// recordingFactory keeps the root trackers it hands out.
type recordingFactory struct {
	mu    sync.Mutex
	roots []*progress.Node
}

func (f *recordingFactory) factory() progress.Factory {
	return func(name string, total int) progress.Tracker {
		f.mu.Lock()
		defer f.mu.Unlock()
		root := progress.NewNode(name, total)
		f.roots = append(f.roots, root)
		return root
	}
}

func (f *recordingFactory) root(t *testing.T) *progress.Node {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.roots) != 1 {
		t.Fatalf("expected exactly one root tracker, got %d", len(f.roots))
	}
	return f.roots[0]
}

type strategyCase struct {
	name string
	make func(pkgs []workspace.Package, opts ...Option) Strategy[string]
}

var allStrategies = []strategyCase{
	{"ForEach", ForEach[string]},
	{"Parallel", Parallel[string]},
	{"Batched", Batched[string]},
}

func TestStrategies_ResultsInInputOrder(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			pkgs := packages("a", "b", "c", "d")
			results, err := sc.make(pkgs, WithConcurrency(4))(context.Background(),
				func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
					// Later packages finish first.
					time.Sleep(time.Duration('e'-pkg.Name[0]) * 2 * time.Millisecond)
					return "built:" + pkg.Name, nil
				})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want := []string{"built:a", "built:b", "built:c", "built:d"}
			if !slices.Equal(results, want) {
				t.Errorf("expected %v, got %v", want, results)
			}
		})
	}
}

func TestStrategies_BuiltRoundTrip(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			ctx := context.Background()
			store := built.NewMemoryStore()
			pkgs := packages("a", "b", "c")

			if _, err := sc.make(pkgs, WithStore(store), WithBuiltLabel("build"))(ctx, echo); err != nil {
				t.Fatalf("first run: %v", err)
			}

			for _, p := range pkgs {
				if ok, _ := store.IsBuilt(ctx, p, "build"); !ok {
					t.Errorf("expected %s to be marked built", p.Name)
				}
			}

			var calls atomic.Int32
			results, err := sc.make(pkgs, WithStore(store), WithBuiltLabel("build"))(ctx,
				func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
					calls.Add(1)
					return pkg.Name, nil
				})
			if err != nil {
				t.Fatalf("second run: %v", err)
			}
			if calls.Load() != 0 || len(results) != 0 {
				t.Errorf("expected every package to be filtered out, ran %d", calls.Load())
			}
		})
	}
}

func TestStrategies_OnlyUnbuiltPackagesRun(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			ctx := context.Background()
			store := built.NewMemoryStore()
			pkgs := packages("A", "B", "C")
			_ = store.MarkBuilt(ctx, pkgs[0], "build")

			results, err := sc.make(pkgs, WithStore(store), WithBuiltLabel("build"))(ctx, echo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := []string{"built:B", "built:C"}; !slices.Equal(results, want) {
				t.Errorf("expected %v, got %v", want, results)
			}
		})
	}
}

func TestStrategies_NoMarkWithoutLabel(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			ctx := context.Background()
			store := built.NewMemoryStore()
			pkgs := packages("a")

			if _, err := sc.make(pkgs, WithStore(store))(ctx, echo); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok, _ := store.IsBuilt(ctx, pkgs[0], ""); ok {
				t.Error("expected nothing to be marked without a label")
			}
		})
	}
}

func TestStrategies_FailedPackageIsNotMarked(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			ctx := context.Background()
			store := built.NewMemoryStore()
			pkgs := packages("ok", "bad")
			taskErr := errors.New("compile error")

			_, err := sc.make(pkgs, WithStore(store), WithBuiltLabel("build"))(ctx,
				func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
					if pkg.Name == "bad" {
						return "", taskErr
					}
					return pkg.Name, nil
				})
			if !errors.Is(err, taskErr) {
				t.Fatalf("expected %v, got %v", taskErr, err)
			}
			if ok, _ := store.IsBuilt(ctx, pkgs[1], "build"); ok {
				t.Error("expected failed package not to be marked built")
			}
		})
	}
}

func TestStrategies_LabelWithoutStore(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			var calls atomic.Int32
			_, err := sc.make(packages("a"), WithBuiltLabel("build"))(context.Background(),
				func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
					calls.Add(1)
					return "", nil
				})
			if !errors.Is(err, built.ErrNoStore) {
				t.Fatalf("expected ErrNoStore, got %v", err)
			}
			if calls.Load() != 0 {
				t.Error("expected no task to run")
			}
		})
	}
}

type brokenStore struct {
	err error
}

func (s brokenStore) IsBuilt(context.Context, workspace.Package, string) (bool, error) {
	return false, s.err
}

func (s brokenStore) MarkBuilt(context.Context, workspace.Package, string) error {
	return s.err
}

func TestStrategies_LookupFailureStopsBeforeScheduling(t *testing.T) {
	lookupErr := errors.New("cannot read markers")
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			var calls atomic.Int32
			_, err := sc.make(packages("a", "b"), WithStore(brokenStore{err: lookupErr}), WithBuiltLabel("build"))(context.Background(),
				func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
					calls.Add(1)
					return "", nil
				})
			if !errors.Is(err, lookupErr) {
				t.Fatalf("expected %v, got %v", lookupErr, err)
			}
			if calls.Load() != 0 {
				t.Error("expected no task to run after a failed lookup")
			}
		})
	}
}

type markFailStore struct {
	*built.MemoryStore
	err error
}

func (s markFailStore) MarkBuilt(context.Context, workspace.Package, string) error {
	return s.err
}

func TestStrategies_MarkFailureFailsPackage(t *testing.T) {
	markErr := errors.New("disk full")
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			store := markFailStore{MemoryStore: built.NewMemoryStore(), err: markErr}
			_, err := sc.make(packages("a"), WithStore(store), WithBuiltLabel("build"))(context.Background(), echo)
			if !errors.Is(err, markErr) {
				t.Fatalf("expected %v, got %v", markErr, err)
			}
		})
	}
}

func TestStrategies_EmptyAfterFilter(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			rec := &recordingFactory{}
			results, err := sc.make(nil, WithProgress(rec.factory()))(context.Background(), echo)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if results == nil || len(results) != 0 {
				t.Errorf("expected an empty non-nil result, got %#v", results)
			}
			if len(rec.roots) != 0 {
				t.Error("expected no tracker for an empty run")
			}
		})
	}
}

func TestStrategies_ProgressCompletesOnFailure(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			rec := &recordingFactory{}
			taskErr := errors.New("nope")

			_, err := sc.make(packages("only"), WithProgress(rec.factory()))(context.Background(),
				func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
					return "", taskErr
				})
			if !errors.Is(err, taskErr) {
				t.Fatalf("expected %v, got %v", taskErr, err)
			}

			root := rec.root(t)
			if got := root.Completed(); got != 1 {
				t.Errorf("expected the failed package to count as completed work, got %d", got)
			}
			if !root.Finished() {
				t.Error("expected the run tracker to be finished")
			}
		})
	}
}

func TestStrategies_StartAndEndHooks(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			ctx := context.Background()
			store := built.NewMemoryStore()
			pkgs := packages("done", "ok", "bad")
			_ = store.MarkBuilt(ctx, pkgs[0], "build")
			taskErr := errors.New("bad failed")

			var mu sync.Mutex
			started := map[string]bool{}
			ended := map[string]error{}

			_, err := sc.make(pkgs,
				WithStore(store),
				WithBuiltLabel("build"),
				WithOnStart(func(pkg workspace.Package) {
					mu.Lock()
					started[pkg.Name] = true
					mu.Unlock()
				}),
				WithOnEnd(func(pkg workspace.Package, err error) {
					mu.Lock()
					ended[pkg.Name] = err
					mu.Unlock()
				}),
			)(ctx, func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
				if pkg.Name == "bad" {
					return "", taskErr
				}
				return pkg.Name, nil
			})
			if !errors.Is(err, taskErr) {
				t.Fatalf("expected %v, got %v", taskErr, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if started["done"] {
				t.Error("expected the built package not to be reported")
			}
			if !started["ok"] || ended["ok"] != nil {
				t.Errorf("expected ok to start and end cleanly, got %v", ended["ok"])
			}
			if !errors.Is(ended["bad"], taskErr) {
				t.Errorf("expected the end hook to see %v, got %v", taskErr, ended["bad"])
			}
		})
	}
}

func TestStrategies_RateLimit(t *testing.T) {
	for _, sc := range allStrategies {
		t.Run(sc.name, func(t *testing.T) {
			start := time.Now()
			if _, err := sc.make(packages("a", "b", "c"), WithRateLimit(20, 1))(context.Background(), echo); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
				t.Errorf("expected launches to be throttled, took %v", elapsed)
			}
		})
	}
}

func TestForEach_RunsOneAtATimeInOrder(t *testing.T) {
	var active, highWater atomic.Int32
	var mu sync.Mutex
	var order []string

	_, err := ForEach[string](packages("a", "b", "c", "d"), WithConcurrency(10))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			if cur := active.Add(1); cur > highWater.Load() {
				highWater.Store(cur)
			}
			mu.Lock()
			order = append(order, pkg.Name)
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return pkg.Name, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if highWater.Load() != 1 {
		t.Errorf("expected strictly sequential execution, saw %d at once", highWater.Load())
	}
	if !slices.Equal(order, []string{"a", "b", "c", "d"}) {
		t.Errorf("expected input order, got %v", order)
	}
}

func TestForEach_SharesRunTracker(t *testing.T) {
	rec := &recordingFactory{}
	var seen sync.Map

	_, err := ForEach[string](packages("a", "b"), WithProgress(rec.factory()))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			seen.Store(pkg.Name, tr)
			return "", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	root := rec.root(t)
	if root.Name() != "forEach" {
		t.Errorf("expected tracker named forEach, got %q", root.Name())
	}
	for _, name := range []string{"a", "b"} {
		tr, _ := seen.Load(name)
		if tr != progress.Tracker(root) {
			t.Errorf("expected %s to receive the run tracker", name)
		}
	}
	if root.Completed() != 2 {
		t.Errorf("expected 2 completed, got %d", root.Completed())
	}
}

func TestForEach_StopsAfterFailure(t *testing.T) {
	taskErr := errors.New("b failed")
	var ran []string

	_, err := ForEach[string](packages("a", "b", "c"))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			ran = append(ran, pkg.Name)
			if pkg.Name == "b" {
				return "", taskErr
			}
			return pkg.Name, nil
		})
	if !errors.Is(err, taskErr) {
		t.Fatalf("expected %v, got %v", taskErr, err)
	}
	if !slices.Equal(ran, []string{"a", "b"}) {
		t.Errorf("expected c never to start, ran %v", ran)
	}
}

func TestParallel_ConcurrencyCeiling(t *testing.T) {
	var active, highWater atomic.Int32
	names := make([]string, 12)
	for i := range names {
		names[i] = string(rune('a' + i))
	}

	_, err := Parallel[int](packages(names...), WithConcurrency(3))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (int, error) {
			cur := active.Add(1)
			for {
				old := highWater.Load()
				if cur <= old || highWater.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			active.Add(-1)
			return 0, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hw := highWater.Load(); hw > 3 {
		t.Errorf("expected at most 3 concurrent packages, saw %d", hw)
	}
}

func TestParallel_ChildTrackers(t *testing.T) {
	rec := &recordingFactory{}
	var sawPaused atomic.Bool

	_, err := Parallel[string](packages("a", "b", "c"), WithConcurrency(1), WithProgress(rec.factory()))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			node := tr.(*progress.Node)
			if node.Paused() {
				sawPaused.Store(true)
			}
			if node.Name() != pkg.Name {
				t.Errorf("expected tracker named %s, got %s", pkg.Name, node.Name())
			}
			return "", nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sawPaused.Load() {
		t.Error("expected a package's tracker to be resumed while it runs")
	}

	root := rec.root(t)
	children := root.Children()
	if len(children) != 3 {
		t.Fatalf("expected 3 child trackers, got %d", len(children))
	}
	for _, c := range children {
		if c.Completed() != 1 || !c.Finished() {
			t.Errorf("child %s: completed=%d finished=%v", c.Name(), c.Completed(), c.Finished())
		}
	}
	if root.Completed() != 3 {
		t.Errorf("expected root to total 3, got %d", root.Completed())
	}
}

func TestParallel_ChildrenStayPausedUntilStarted(t *testing.T) {
	rec := &recordingFactory{}
	release := make(chan struct{})
	started := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := Parallel[string](packages("first", "second"), WithConcurrency(1), WithProgress(rec.factory()))(context.Background(),
			func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
				if pkg.Name == "first" {
					close(started)
					<-release
				}
				return "", nil
			})
		done <- err
	}()

	<-started
	children := rec.root(t).Children()
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if !children[1].Paused() {
		t.Error("expected the waiting package's tracker to be paused")
	}
	if children[0].Paused() {
		t.Error("expected the running package's tracker to be resumed")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParallel_DrainsStartedPackages(t *testing.T) {
	for i := 0; i < 50; i++ {
		drainStartedPackages(t)
	}
}

func drainStartedPackages(t *testing.T) {
	t.Helper()
	taskErr := errors.New("b failed")
	var finished sync.Map

	_, err := Parallel[string](packages("a", "b", "c"), WithConcurrency(3))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			if pkg.Name == "b" {
				return "", taskErr
			}
			time.Sleep(20 * time.Millisecond)
			finished.Store(pkg.Name, true)
			return pkg.Name, nil
		})
	if !errors.Is(err, taskErr) {
		t.Fatalf("expected %v, got %v", taskErr, err)
	}
	for _, name := range []string{"a", "c"} {
		if _, ok := finished.Load(name); !ok {
			t.Errorf("expected %s to finish before the error was returned", name)
		}
	}
}

func TestBatched_DependencyOrder(t *testing.T) {
	pkgs := []workspace.Package{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A"}},
		{Name: "C"},
	}

	var aDone, bEarly atomic.Bool
	results, err := Batched[string](pkgs, WithBatchConcurrency(4))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			switch pkg.Name {
			case "A":
				time.Sleep(15 * time.Millisecond)
				aDone.Store(true)
			case "B":
				if !aDone.Load() {
					bEarly.Store(true)
				}
			}
			return pkg.Name, nil
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bEarly.Load() {
		t.Error("expected B to start only after A completed")
	}
	if !slices.Equal(results, []string{"A", "B", "C"}) {
		t.Errorf("expected results in input order, got %v", results)
	}
}

func TestBatched_BuiltDependencyDoesNotBlock(t *testing.T) {
	ctx := context.Background()
	store := built.NewMemoryStore()
	pkgs := []workspace.Package{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A"}},
	}
	_ = store.MarkBuilt(ctx, pkgs[0], "build")

	results, err := Batched[string](pkgs, WithStore(store), WithBuiltLabel("build"))(ctx, echo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(results, []string{"built:B"}) {
		t.Errorf("expected only B to run, got %v", results)
	}
}

func TestBatched_CycleFailsBeforeRunning(t *testing.T) {
	pkgs := []workspace.Package{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"A"}},
	}

	var calls atomic.Int32
	_, err := Batched[string](pkgs)(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			calls.Add(1)
			return "", nil
		})

	var cycle *batch.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected *batch.CycleError, got %v", err)
	}
	if calls.Load() != 0 {
		t.Error("expected nothing to run")
	}
}

func TestBatched_SkipDependentsPolicy(t *testing.T) {
	pkgs := []workspace.Package{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A"}},
		{Name: "C"},
		{Name: "D", Dependencies: []string{"C"}},
	}
	taskErr := errors.New("A failed")

	var mu sync.Mutex
	var ran []string
	_, err := Batched[string](pkgs, WithFailurePolicy(batch.SkipDependents))(context.Background(),
		func(ctx context.Context, pkg workspace.Package, tr progress.Tracker) (string, error) {
			mu.Lock()
			ran = append(ran, pkg.Name)
			mu.Unlock()
			if pkg.Name == "A" {
				return "", taskErr
			}
			return pkg.Name, nil
		})
	if !errors.Is(err, taskErr) {
		t.Fatalf("expected %v, got %v", taskErr, err)
	}

	slices.Sort(ran)
	if !slices.Equal(ran, []string{"A", "C", "D"}) {
		t.Errorf("expected B to be skipped, ran %v", ran)
	}
}

func TestOptions_FreshPerCall(t *testing.T) {
	a := newConfig(WithConcurrency(3), WithBuiltLabel("x"))
	b := newConfig()

	if b.concurrency != 50 || b.label != "" {
		t.Errorf("expected defaults to be unaffected by other calls, got %+v", b)
	}
	if a.concurrency != 3 {
		t.Errorf("expected concurrency 3, got %d", a.concurrency)
	}
	if b.batchConcurrency != 4 {
		t.Errorf("expected default batch concurrency 4, got %d", b.batchConcurrency)
	}
}
