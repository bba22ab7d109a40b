package timectrl

import (
	"sync"
	"time"
)

// Clock is the time source used by the reroute policy and the threat
// monitor. Production code uses SystemClock; tests drive a
// ManualClock so rate-gate behaviour is reproducible.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManualClock starts a manual clock at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set jumps the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Mode describes how a TickController advances.
type Mode int

const (
	// RealTime fires listeners on wall-clock tick boundaries.
	RealTime Mode = iota
	// Accelerated fires listeners as fast as the loop can run while
	// still advancing the controller's time by Tick per iteration.
	Accelerated
)

// TickController drives periodic work (the threat monitor sweep) and
// notifies registered listeners on every tick. It implements Clock,
// reporting the controller's own advanced time, which in Accelerated
// mode runs ahead of the wall clock.
type TickController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []func(time.Time)
}

// NewTickController constructs a controller.
func NewTickController(start time.Time, tick time.Duration, mode Mode) *TickController {
	return &TickController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// Now returns the controller's current time. Implements Clock.
func (tc *TickController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick. Listeners
// must be registered before Start.
func (tc *TickController) AddListener(fn func(time.Time)) {
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for the specified duration in a separate
// goroutine and returns a channel closed when it finishes. A duration
// of zero or less runs a single tick and stops, which keeps a
// misconfigured controller from spinning forever in Accelerated mode.
func (tc *TickController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		current := tc.StartTime
		tc.currentTime = current
		tc.mu.Unlock()

		elapsed := time.Duration(0)

		var ticker *time.Ticker
		if tc.Mode == RealTime {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		for {
			if ticker != nil {
				<-ticker.C
			}
			current = current.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = current
			tc.mu.Unlock()

			for _, fn := range tc.listeners {
				fn(current)
			}

			if elapsed >= duration {
				return
			}
		}
	}()
	return done
}
