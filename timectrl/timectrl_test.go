package timectrl

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerAcceleratedRunsToDuration(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	var ticks []time.Time
	tc.AddListener(func(now time.Time) { ticks = append(ticks, now) })

	<-tc.Start(15 * time.Millisecond)

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if len(ticks) != 3 || !ticks[0].Equal(start.Add(5*time.Millisecond)) {
		t.Fatalf("ticks = %v", ticks)
	}
}

func TestTimeControllerRealTimeFollowsClock(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMock()
	tc := NewTimeController(start, time.Second, RealTime, WithClock(mock))

	ticked := make(chan time.Time)
	tc.AddListener(func(now time.Time) { ticked <- now })

	done := tc.Start(3 * time.Second)
	for i := 1; i <= 3; i++ {
		mock.Add(time.Second)
		got := <-ticked
		if want := start.Add(time.Duration(i) * time.Second); !got.Equal(want) {
			t.Fatalf("tick %d = %v, want %v", i, got, want)
		}
	}
	<-done
}

func TestTimeControllerAcceleratedPacedBySpeed(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	mock := clock.NewMock()
	tc := NewTimeController(start, time.Second, Accelerated, WithClock(mock), WithSpeed(10))

	if got := tc.Interval(); got != 100*time.Millisecond {
		t.Fatalf("Interval() = %v, want 100ms", got)
	}

	ticked := make(chan time.Time)
	tc.AddListener(func(now time.Time) { ticked <- now })

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.StartContext(ctx, 0)
	for i := 1; i <= 3; i++ {
		mock.Add(100 * time.Millisecond)
		got := <-ticked
		if want := start.Add(time.Duration(i) * time.Second); !got.Equal(want) {
			t.Fatalf("tick %d = %v, want %v", i, got, want)
		}
	}
	cancel()
	<-done
}

func TestTimeControllerAcceleratedUnboundedRunIsRateLimited(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second/30, Accelerated)

	var ticks atomic.Int64
	tc.AddListener(func(time.Time) { ticks.Add(1) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	<-tc.StartContext(ctx, 0)

	// 100ms of wall time at 10x is about 30 steps of 1/30s.
	if n := ticks.Load(); n == 0 || n > 60 {
		t.Fatalf("ticks in 100ms = %d, want between 1 and 60", n)
	}
}

func TestWithSpeedIgnoresInvalid(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for _, f := range []float64{0, -3, math.Inf(1), math.NaN()} {
		tc := NewTimeController(start, time.Second, Accelerated, WithSpeed(f))
		if got, want := tc.Interval(), time.Duration(float64(time.Second)/DefaultSpeed); got != want {
			t.Fatalf("WithSpeed(%v): Interval() = %v, want %v", f, got, want)
		}
	}
}

func TestTimeControllerStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime, WithClock(clock.NewMock()))

	ctx, cancel := context.WithCancel(context.Background())
	done := tc.StartContext(ctx, 0)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
	if !tc.Now().Equal(start) {
		t.Fatalf("Now() moved without ticks: %v", tc.Now())
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode("accelerated"); !ok || m != Accelerated {
		t.Fatalf("ParseMode(accelerated) = %v, %v", m, ok)
	}
	if _, ok := ParseMode("warp"); ok {
		t.Fatalf("ParseMode(warp) should fail")
	}
}
