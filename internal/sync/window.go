package sync

import (
	"fmt"
	"time"
)

// Window is the time range one poll cycle queries. It is recomputed from the
// wall clock each run and never persisted; the lookback must therefore be
// wide enough to absorb scheduler gaps and clock skew between cycles.
type Window struct {
	Since time.Time
	Until time.Time
}

// WindowTracker computes poll windows from a fixed lookback duration.
type WindowTracker struct {
	Lookback time.Duration
}

func NewWindowTracker(lookback time.Duration) *WindowTracker {
	return &WindowTracker{Lookback: lookback}
}

// Next returns the window ending at now.
func (t *WindowTracker) Next(now time.Time) Window {
	return Window{
		Since: now.Add(-t.Lookback),
		Until: now,
	}
}

// Validate checks the lookback against the poll interval. A cycle may be
// skipped entirely, so the lookback has to cover at least two intervals plus
// a drift margin or changes could fall between consecutive windows.
func (t *WindowTracker) Validate(pollInterval, driftMargin time.Duration) error {
	min := 2*pollInterval + driftMargin
	if t.Lookback < min {
		return fmt.Errorf("lookback %s too narrow for poll interval %s: need at least %s", t.Lookback, pollInterval, min)
	}
	return nil
}

// Covers reports whether an event timestamp falls inside the window.
func (w Window) Covers(ts time.Time) bool {
	return !ts.Before(w.Since) && !ts.After(w.Until)
}
