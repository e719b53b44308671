// Package ratelimit decides whether a caller may invoke a tool under
// per-minute, per-day and consecutive-same-tool policies.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// Limits configures the three policies.
type Limits struct {
	PerMinute   int
	PerDay      int
	Consecutive int
}

// DefaultLimits returns 60/min, 1000/day and 10 consecutive calls.
func DefaultLimits() Limits {
	return Limits{PerMinute: 60, PerDay: 1000, Consecutive: 10}
}

type windowKey struct {
	tool   string
	caller string
}

type windows struct {
	minute []time.Time
	day    []time.Time
}

type streak struct {
	tool  string
	count int
}

// Limiter tracks invocation history for the lifetime of the process.
// Check and Record each take the lock once for their full read-modify-write.
type Limiter struct {
	limits Limits
	now    func() time.Time

	mu      sync.Mutex
	windows map[windowKey]*windows
	streaks map[string]*streak
}

// Option customises a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter with the given limits.
func New(limits Limits, opts ...Option) *Limiter {
	l := &Limiter{
		limits:  limits,
		now:     time.Now,
		windows: make(map[windowKey]*windows),
		streaks: make(map[string]*streak),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check reports whether caller may invoke tool now. A denial carries a
// human-readable reason. Check does not record an invocation, but it does
// advance the caller's consecutive-call streak.
func (l *Limiter) Check(tool, caller string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windowsFor(tool, caller)

	w.minute = prune(w.minute, now.Add(-minuteWindow))
	if len(w.minute) >= l.limits.PerMinute {
		return false, fmt.Sprintf("Rate limit exceeded: %d calls to %s in the last minute (limit %d per minute)",
			len(w.minute), tool, l.limits.PerMinute)
	}

	w.day = prune(w.day, now.Add(-dayWindow))
	if len(w.day) >= l.limits.PerDay {
		return false, fmt.Sprintf("Rate limit exceeded: %d calls to %s in the last 24 hours (limit %d per day)",
			len(w.day), tool, l.limits.PerDay)
	}

	s, ok := l.streaks[caller]
	if !ok {
		s = &streak{}
		l.streaks[caller] = s
	}
	if s.tool == tool {
		next := s.count + 1
		if next >= l.limits.Consecutive {
			return false, fmt.Sprintf("Too many consecutive calls to %s (%d in a row, limit %d); possible infinite loop detected, try a different approach",
				tool, next, l.limits.Consecutive)
		}
		s.count = next
	} else {
		s.count = 1
	}
	s.tool = tool

	return true, ""
}

// Record appends an invocation of tool by caller to both windows.
// Call it only after Check allowed the call and the tool actually ran.
func (l *Limiter) Record(tool, caller string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w := l.windowsFor(tool, caller)
	w.minute = append(w.minute, now)
	w.day = append(w.day, now)
}

func (l *Limiter) windowsFor(tool, caller string) *windows {
	key := windowKey{tool: tool, caller: caller}
	w, ok := l.windows[key]
	if !ok {
		w = &windows{}
		l.windows[key] = w
	}
	return w
}

// prune drops timestamps at or before cutoff. Timestamps are appended in
// order, so the expired ones form a prefix.
func prune(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}
