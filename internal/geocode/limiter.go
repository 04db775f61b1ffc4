package geocode

import (
	"sync"
	"time"
)

// inflightLimiter caps concurrent lookups. Callers that cannot acquire a
// slot are turned away immediately rather than queued.
type inflightLimiter struct {
	mu    sync.Mutex
	count int
	max   int
}

func newInflightLimiter(max int) *inflightLimiter {
	return &inflightLimiter{max: max}
}

// acquire reserves a slot. Returns false if all slots are taken.
func (l *inflightLimiter) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}

func (l *inflightLimiter) release() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count > 0 {
		l.count--
	}
}

func (l *inflightLimiter) inflight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

// intervalGate admits at most one call per interval. Rejected calls are not
// queued.
type intervalGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func newIntervalGate(interval time.Duration) *intervalGate {
	return &intervalGate{interval: interval, now: time.Now}
}

// allow reports whether a call may proceed and, if so, starts a new interval.
func (g *intervalGate) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}
