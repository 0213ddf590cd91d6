// Package ratelimit implements a shared monotonic-clock gate that enforces
// minimum spacing between outbound calls of one class. All callers hitting the
// same remote service share one Limiter: the portal's anti-automation
// heuristics key on total request cadence, not per-session cadence.
package ratelimit

import (
	"math/rand"
	"sync"
	"time"
)

// Limiter serializes bursts across callers by tracking a "next allowed time"
// watermark behind a mutex. The clock and sleep functions are injectable so
// tests can run against a fake clock.
type Limiter struct {
	mu    sync.Mutex
	next  time.Time
	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Limiter on the real clock.
func New() *Limiter {
	return &Limiter{now: time.Now, sleep: time.Sleep}
}

// NewWithClock creates a Limiter with injected clock and sleep functions.
func NewWithClock(now func() time.Time, sleep func(time.Duration)) *Limiter {
	return &Limiter{now: now, sleep: sleep}
}

// Throttle blocks until the watermark passes, then advances it by a delay
// drawn uniformly from [min, max]. A non-positive max is a no-op. The lock is
// held across the wait on purpose: concurrent callers queue behind each other,
// which is exactly the spacing the gate exists to enforce.
func (l *Limiter) Throttle(min, max time.Duration) {
	if max <= 0 {
		return
	}
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}

	delay := min
	if max > min {
		delay += time.Duration(rand.Int63n(int64(max-min) + 1))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if wait := l.next.Sub(l.now()); wait > 0 {
		l.sleep(wait)
	}
	l.next = l.now().Add(delay)
}

// ThrottleFixed enforces a single fixed spacing between calls.
func (l *Limiter) ThrottleFixed(delay time.Duration) {
	l.Throttle(delay, delay)
}
