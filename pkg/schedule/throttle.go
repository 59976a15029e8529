package schedule

import (
	"sync"
	"time"
)

// Throttle admits at most one execution per interval. Calls inside the window
// are coalesced into nothing; the caller simply skips the recompute.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// NewThrottle returns a throttle for the given interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// SetClock overrides the time source. Test hook.
func (t *Throttle) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Allow reports whether the caller may run now, consuming the window slot.
func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	current := t.now()
	if !t.last.IsZero() && current.Sub(t.last) < t.interval {
		return false
	}
	t.last = current
	return true
}
