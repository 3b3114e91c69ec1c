package timectrl

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// SimClock gives read access to simulation time.
type SimClock interface {
	Now() time.Time
}

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime steps once per Tick of the underlying clock.
	RealTime Mode = iota
	// Accelerated steps by Tick every Tick/Speed of the underlying clock.
	Accelerated
)

// DefaultSpeed is the Accelerated speed-up when WithSpeed is not given.
const DefaultSpeed = 10.0

// minInterval bounds how often an accelerated controller may fire.
const minInterval = 100 * time.Microsecond

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// ParseMode maps "realtime" and "accelerated" to a Mode.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "realtime", "real-time", "":
		return RealTime, true
	case "accelerated", "fast":
		return Accelerated, true
	default:
		return RealTime, false
	}
}

// Option customises a TimeController.
type Option func(*TimeController)

// WithClock sets the clock used for RealTime pacing. Tests pass a
// clock.Mock to drive ticks explicitly.
func WithClock(c clock.Clock) Option {
	return func(tc *TimeController) { tc.clock = c }
}

// WithSpeed sets how many simulated seconds pass per wall-clock second in
// Accelerated mode. Non-positive or infinite values are ignored.
func WithSpeed(f float64) Option {
	return func(tc *TimeController) {
		if f > 0 && !math.IsInf(f, 0) {
			tc.speed = f
		}
	}
}

// TimeController drives simulation time in fixed steps and notifies
// registered listeners after each step.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	clock       clock.Clock
	speed       float64
	currentTime time.Time
	listeners   []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode, opts ...Option) *TimeController {
	tc := &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		clock:       clock.New(),
		speed:       DefaultSpeed,
		currentTime: start,
	}
	for _, opt := range opts {
		opt(tc)
	}
	return tc
}

// Now returns the current simulation time.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// SetTime jumps simulation time to t without notifying listeners.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for duration (forever when duration is zero)
// in a separate goroutine. It returns a channel that is closed when the
// controller finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	return tc.StartContext(context.Background(), duration)
}

// Interval is the wall-clock time between steps: Tick in RealTime mode,
// Tick/Speed in Accelerated mode.
func (tc *TimeController) Interval() time.Duration {
	if tc.Mode != Accelerated {
		return tc.Tick
	}
	return max(time.Duration(float64(tc.Tick)/tc.speed), minInterval)
}

// StartContext is Start with cancellation. Both modes step on a ticker of
// the underlying clock. The ticker is created before the goroutine starts,
// so a mock clock may be advanced as soon as it returns.
func (tc *TimeController) StartContext(ctx context.Context, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if tc.Tick <= 0 {
		close(done)
		return done
	}

	ticker := tc.clock.Ticker(tc.Interval())

	tc.mu.Lock()
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.mu.Unlock()

	go func() {
		defer close(done)
		defer ticker.Stop()

		var elapsed time.Duration
		for duration <= 0 || elapsed < duration {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			listeners := append([]func(time.Time){}, tc.listeners...)
			tc.mu.Unlock()

			for _, fn := range listeners {
				fn(simTime)
			}
		}
	}()
	return done
}
