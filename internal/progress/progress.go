// Copyright ©2023 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Throughput and ETA tracking for long running evaluation.
//
// The tracker only counts completion events, it is insensitive to the order
// in which frame pairs finish. Rendering is the caller's business, typically
// a progress bar polling Snapshot on a coalescing ticker.

package progress

import (
	"sync"
	"time"
)

// DefaultWindow is the trailing time window for the rolling completion rate.
// A cumulative average would mask recent speed changes, a few seconds of
// history reflects them quickly while still smoothing jitter.
const DefaultWindow = 5 * time.Second

// State is a point-in-time view of run progress.
type State struct {
	Completed uint64
	// Total is 0 when the expected frame count is unknown.
	Total uint64
	// Rate is the rolling average of completions per second over the
	// trailing window.
	Rate    float64
	Elapsed time.Duration
	// ETA is (Total - Completed) / Rate, zero when Total or Rate is unknown.
	ETA time.Duration
}

// Tracker accumulates completion events and derives a rolling rate.
// All methods are safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	completed uint64
	total     uint64
	window    time.Duration
	startedAt time.Time
	// Completion timestamps no older than window, oldest first.
	recent []time.Time
	now    func() time.Time
}

// NewTracker creates a Tracker with given expected total, 0 for unknown.
func NewTracker(total uint64) *Tracker {
	return newTracker(total, DefaultWindow, time.Now)
}

func newTracker(total uint64, window time.Duration, now func() time.Time) *Tracker {
	return &Tracker{
		total:     total,
		window:    window,
		startedAt: now(),
		now:       now,
	}
}

// Observe records one finished evaluation. It never blocks beyond a short
// mutex hold, so calling it from the pipeline's completion path is cheap.
func (t *Tracker) Observe() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.completed++
	t.recent = append(t.recent, now)
	t.trim(now)
}

// Snapshot returns the current progress state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.trim(now)

	s := State{
		Completed: t.completed,
		Total:     t.total,
		Elapsed:   now.Sub(t.startedAt),
	}

	// The window is clipped to elapsed time so the rate ramps up sensibly
	// during the first seconds of a run.
	span := t.window
	if s.Elapsed < span {
		span = s.Elapsed
	}
	if span > 0 && len(t.recent) > 0 {
		s.Rate = float64(len(t.recent)) / span.Seconds()
	}

	if s.Rate > 0 && t.total > t.completed {
		remaining := float64(t.total-t.completed) / s.Rate
		s.ETA = time.Duration(remaining * float64(time.Second))
	}

	return s
}

// trim drops timestamps that fell out of the trailing window.
func (t *Tracker) trim(now time.Time) {
	cutoff := now.Add(-t.window)
	i := 0
	for i < len(t.recent) && t.recent[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		t.recent = append(t.recent[:0], t.recent[i:]...)
	}
}
