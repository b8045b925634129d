package intake

import (
	"sync"
	"time"
)

// limiter is an exact sliding-window counter. Each caller keeps the
// timestamps of its requests inside the window; expired stamps are pruned
// on the next call.
type limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	now     func() time.Time
	callers map[string][]time.Time
}

func newLimiter(window time.Duration, max int) *limiter {
	return &limiter{
		window:  window,
		max:     max,
		now:     time.Now,
		callers: make(map[string][]time.Time),
	}
}

// allow records one request for the caller unless the window is already at
// capacity. A non-positive max disables the limiter.
func (l *limiter) allow(caller string) bool {
	if l.max <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	stamps := l.callers[caller]
	drop := 0
	for drop < len(stamps) && !stamps[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		stamps = append(stamps[:0], stamps[drop:]...)
	}
	if len(stamps) >= l.max {
		l.callers[caller] = stamps
		return false
	}
	l.callers[caller] = append(stamps, now)
	return true
}
