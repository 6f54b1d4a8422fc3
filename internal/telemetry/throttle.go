package telemetry

import "time"

// Throttle rate-limits reading publication so a fast tick loop does
// not flood the broker. Not safe for concurrent use; it belongs to
// the single goroutine driving the ticks.
type Throttle struct {
	interval time.Duration
	last     time.Time
}

// NewThrottle returns a Throttle that allows one reading per interval.
// A non-positive interval allows everything.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

// Allow reports whether a reading at the given instant may be
// published, and if so marks it as published.
func (t *Throttle) Allow(now time.Time) bool {
	if t.interval <= 0 {
		return true
	}
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Reset forgets the last published instant so the next reading passes.
func (t *Throttle) Reset() {
	t.last = time.Time{}
}
