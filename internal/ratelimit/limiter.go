// Package ratelimit provides per-user sliding-window request admission.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// StaleAfter is how long an idle rate window survives before periodic
// cleanup drops it. Intentionally larger than any sane admission window
// so a recent burst is never forgotten early.
const StaleAfter = time.Hour

// Limiter gates inbound requests per user.
type Limiter interface {
	// Allow reports whether the user may proceed. It never fails: a
	// broken backend fails open.
	Allow(ctx context.Context, userID string) bool
	// Cleanup drops user records with no activity inside the staleness
	// window. Idempotent, safe to run concurrently with Allow.
	Cleanup(ctx context.Context)
}

// SlidingWindow is the in-memory Limiter: per-user timestamp lists over a
// trailing window. Every admission check rebuilds the user's list from
// the still-fresh timestamps (copy-on-write), so the list never grows
// past the cap even under constant hammering.
type SlidingWindow struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	window  time.Duration
	limit   int
	now     func() time.Time
}

// NewSlidingWindow creates a limiter allowing limit requests per window.
func NewSlidingWindow(window time.Duration, limit int) *SlidingWindow {
	return &SlidingWindow{
		windows: make(map[string][]time.Time),
		window:  window,
		limit:   limit,
		now:     time.Now,
	}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	l.now = now
	return l
}

func (l *SlidingWindow) Allow(_ context.Context, userID string) bool {
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	var fresh []time.Time
	for _, ts := range l.windows[userID] {
		if ts.After(cutoff) {
			fresh = append(fresh, ts)
		}
	}

	if len(fresh) >= l.limit {
		// Rejected attempts are not recorded; only the compacted
		// window is kept.
		l.windows[userID] = fresh
		return false
	}

	l.windows[userID] = append(fresh, now)
	return true
}

func (l *SlidingWindow) Cleanup(_ context.Context) {
	cutoff := l.now().Add(-StaleAfter)

	l.mu.Lock()
	defer l.mu.Unlock()

	for userID, stamps := range l.windows {
		// Timestamps are appended in order; the last one is the newest.
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, userID)
		}
	}
}

// Tracked returns the number of users with a live rate window.
func (l *SlidingWindow) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
