// Package progress reports how much of a run is left.
//
// Trackers form a tree: a strategy creates one root tracker per run and,
// depending on the strategy, one child per package. Trackers are observed by
// many goroutines and mutated only through their own methods; every
// implementation in this package is safe for concurrent use. Nothing a
// tracker does influences scheduling.
package progress

// Tracker is a mutable record of remaining work.
type Tracker interface {
	// Name identifies the tracker in output.
	Name() string
	// NewChild creates a tracker for one unit of work under this one.
	NewChild(name string) Tracker
	// Pause stops the tracker from reporting; work completed while paused
	// is reported on Resume.
	Pause()
	// Resume undoes Pause.
	Resume()
	// CompleteWork records n finished units.
	CompleteWork(n int)
	// Finish marks the tracker as done.
	Finish()
}

// Factory creates the root tracker of a run with the given amount of work.
type Factory func(name string, total int) Tracker

// Nop returns a Factory whose trackers do nothing.
func Nop() Factory {
	return func(string, int) Tracker { return nopTracker{} }
}

type nopTracker struct{}

func (nopTracker) Name() string            { return "" }
func (nopTracker) NewChild(string) Tracker { return nopTracker{} }
func (nopTracker) Pause()                  {}
func (nopTracker) Resume()                 {}
func (nopTracker) CompleteWork(int)        {}
func (nopTracker) Finish()                 {}
