package ratelimit

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/garyellow/lessonbot-go/internal/metrics"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_AllowWithinWindow(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := New(Config{MaxEvents: 3, Window: time.Minute}, WithClock(clock.Now))
	defer l.Stop()

	for i := range 3 {
		if !l.Allow("15550001") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
		clock.Advance(time.Second)
	}
	if l.Allow("15550001") {
		t.Error("4th request within window allowed, want denied")
	}
	if !l.Allow("15550002") {
		t.Error("other sender should not share the bucket")
	}
}

func TestLimiter_AllowsAgainAfterWindow(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := New(Config{MaxEvents: 2, Window: 10 * time.Second}, WithClock(clock.Now))
	defer l.Stop()

	l.Allow("s")
	l.Allow("s")
	if l.Allow("s") {
		t.Fatal("3rd request allowed, want denied")
	}

	clock.Advance(10*time.Second + time.Millisecond)
	if !l.Allow("s") {
		t.Error("request after window denied, want allowed")
	}
}

func TestLimiter_RefusalNotRecorded(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := New(Config{MaxEvents: 1, Window: 10 * time.Second}, WithClock(clock.Now))
	defer l.Stop()

	if !l.Allow("s") {
		t.Fatal("first request denied")
	}
	// Keep hammering just before the window ends.
	for range 5 {
		clock.Advance(time.Second)
		if l.Allow("s") {
			t.Fatal("request allowed inside window")
		}
	}
	clock.Advance(5*time.Second + time.Millisecond)
	if !l.Allow("s") {
		t.Error("refused attempts must not extend the window")
	}
}

func TestLimiter_WindowBoundary(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := New(Config{MaxEvents: 1, Window: 10 * time.Second}, WithClock(clock.Now))
	defer l.Stop()

	if !l.Allow("s") {
		t.Fatal("first request denied")
	}

	// An entry exactly one window old is not yet older than the window.
	clock.Advance(10 * time.Second)
	if l.Allow("s") {
		t.Fatal("request at exactly the window age allowed, want denied")
	}

	clock.Advance(time.Nanosecond)
	if !l.Allow("s") {
		t.Error("request just past the window denied, want allowed")
	}
}

func TestLimiter_PartialEviction(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := New(Config{MaxEvents: 2, Window: 10 * time.Second}, WithClock(clock.Now))
	defer l.Stop()

	l.Allow("s") // t=0
	clock.Advance(6 * time.Second)
	l.Allow("s") // t=6
	clock.Advance(5 * time.Second)

	// t=11: first entry evicted, second still inside window
	if !l.Allow("s") {
		t.Fatal("expected one slot freed by eviction")
	}
	if l.Allow("s") {
		t.Error("bucket should be full again")
	}
}

func TestLimiter_UpdateLimits(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := New(Config{MaxEvents: 1, Window: time.Minute}, WithClock(clock.Now))
	defer l.Stop()

	l.Allow("s")
	if l.Allow("s") {
		t.Fatal("2nd request allowed with max=1")
	}

	l.UpdateLimits(3, time.Minute)
	if !l.Allow("s") || !l.Allow("s") {
		t.Error("raised limit should admit two more requests")
	}
	if l.Allow("s") {
		t.Error("raised limit exceeded")
	}
}

func TestLimiter_Floors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		max        int
		window     time.Duration
		wantMax    int
		wantWindow time.Duration
	}{
		{0, 0, 1, time.Second},
		{-5, -time.Minute, 1, time.Second},
		{10, 500 * time.Millisecond, 10, time.Second},
		{4, time.Hour, 4, time.Hour},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%s", tt.max, tt.window), func(t *testing.T) {
			t.Parallel()
			l := New(Config{MaxEvents: 5, Window: time.Minute})
			defer l.Stop()

			l.UpdateLimits(tt.max, tt.window)
			gotMax, gotWindow := l.Limits()
			if gotMax != tt.wantMax || gotWindow != tt.wantWindow {
				t.Errorf("Limits() = (%d, %v), want (%d, %v)", gotMax, gotWindow, tt.wantMax, tt.wantWindow)
			}
		})
	}

	l := New(Config{})
	defer l.Stop()
	if m, w := l.Limits(); m != 1 || w != time.Second {
		t.Errorf("zero config Limits() = (%d, %v), want (1, 1s)", m, w)
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	m := metrics.New(prometheus.NewRegistry())
	l := New(Config{MaxEvents: 5, Window: time.Minute, Metrics: m}, WithClock(clock.Now))
	defer l.Stop()

	l.Allow("a")
	clock.Advance(30 * time.Second)
	l.Allow("b")

	if got := l.ActiveSenders(); got != 2 {
		t.Fatalf("ActiveSenders() = %d, want 2", got)
	}

	clock.Advance(45 * time.Second)
	if got := l.Cleanup(); got != 1 {
		t.Errorf("Cleanup() = %d, want 1 (only b is recent)", got)
	}
	if got := testutil.ToFloat64(m.RateLimiterSenders); got != 1 {
		t.Errorf("sender gauge = %v, want 1", got)
	}
}

func TestLimiter_DropMetric(t *testing.T) {
	t.Parallel()
	m := metrics.New(prometheus.NewRegistry())
	l := New(Config{MaxEvents: 1, Window: time.Minute, Metrics: m})
	defer l.Stop()

	l.Allow("s")
	l.Allow("s")
	l.Allow("s")

	if got := testutil.ToFloat64(m.RateLimiterDropped); got != 2 {
		t.Errorf("dropped = %v, want 2", got)
	}
}

func TestLimiter_CleanupLoop(t *testing.T) {
	t.Parallel()
	l := New(Config{MaxEvents: 5, Window: time.Second, CleanupPeriod: 20 * time.Millisecond})
	defer l.Stop()

	l.Allow("s")
	deadline := time.Now().Add(3 * time.Second)
	for l.ActiveSenders() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleanup loop did not drop the idle bucket")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestLimiter_StopIdempotent(t *testing.T) {
	t.Parallel()
	l := New(Config{MaxEvents: 1, Window: time.Second, CleanupPeriod: time.Hour})
	l.Stop()
	l.Stop()
}

func TestLimiter_Concurrent(t *testing.T) {
	t.Parallel()
	const (
		maxEvents = 50
		workers   = 20
		perWorker = 10
	)
	l := New(Config{MaxEvents: maxEvents, Window: time.Hour})
	defer l.Stop()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for range perWorker {
				if l.Allow("same-sender") {
					allowed.Add(1)
				}
				l.Allow(fmt.Sprintf("other-%d", perWorker))
			}
		})
	}
	wg.Wait()

	if got := allowed.Load(); got != maxEvents {
		t.Errorf("allowed = %d, want exactly %d", got, maxEvents)
	}
}
