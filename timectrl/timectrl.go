package timectrl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Mode describes how the Driver advances simulated time.
type Mode int

const (
	// RealTime advances in step with wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still
	// stepping simulated time by the tick interval. Used for headless
	// runs and deterministic tests.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// ParseMode maps a configuration string onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime", "real", "":
		return RealTime, nil
	case "accelerated", "fast":
		return Accelerated, nil
	}
	return RealTime, fmt.Errorf("unknown time mode %q", s)
}

// Driver fires tick callbacks at a fixed simulated interval and tracks
// the current simulated time.
//
// Listeners must be registered before the driver starts; they run on
// the driver goroutine, one tick at a time, so a slow listener slows
// the whole bench rather than racing it.
type Driver struct {
	mu      sync.RWMutex
	start   time.Time
	tick    time.Duration
	mode    Mode
	current time.Time

	listeners []func(time.Time)
}

// New constructs a driver. tick must be positive; the configuration
// layer guarantees that.
func New(start time.Time, tick time.Duration, mode Mode) *Driver {
	return &Driver{
		start:   start,
		tick:    tick,
		mode:    mode,
		current: start,
	}
}

// Now returns the current simulated time.
func (d *Driver) Now() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// AddListener registers a callback invoked on every tick with the
// simulated instant of that tick.
func (d *Driver) AddListener(fn func(time.Time)) {
	d.listeners = append(d.listeners, fn)
}

// Run drives ticks until the context is cancelled or, when duration is
// positive, until that much simulated time has elapsed. Cancellation
// is a clean stop, not an error.
func (d *Driver) Run(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	sim := d.start
	d.current = sim
	d.mu.Unlock()

	var ticker *time.Ticker
	if d.mode == RealTime {
		ticker = time.NewTicker(d.tick)
		defer ticker.Stop()
	}

	var elapsed time.Duration
	for {
		if duration > 0 && elapsed >= duration {
			return nil
		}

		if d.mode == RealTime {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		sim = sim.Add(d.tick)
		elapsed += d.tick

		d.mu.Lock()
		d.current = sim
		d.mu.Unlock()

		for _, fn := range d.listeners {
			fn(sim)
		}
	}
}

// Start runs the driver in its own goroutine and returns a channel
// that is closed when it finishes. Convenience wrapper around Run for
// callers without a context.
func (d *Driver) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(context.Background(), duration)
	}()
	return done
}
