// Package ratelimit provides per-sender admission control for inbound messages.
//
// The limiter keeps an ordered list of admission timestamps per sender.
// Each call evicts timestamps older than the window and admits the message
// only while fewer than MaxEvents remain. Refused attempts are not recorded,
// so a sender who keeps retrying is not locked out longer than the window.
package ratelimit

import (
	"sync"
	"time"

	"github.com/garyellow/lessonbot-go/internal/metrics"
)

// Config configures a Limiter instance.
type Config struct {
	MaxEvents int           // Admissions allowed per window (floored at 1)
	Window    time.Duration // Eviction window (floored at 1s)

	// CleanupPeriod controls how often idle buckets are dropped.
	// Zero disables the background loop; callers may still use Cleanup.
	CleanupPeriod time.Duration

	// Optional metrics reporter
	Metrics *metrics.Metrics
}

// Limiter tracks admissions per sender.
// A single mutex guards the whole bucket map so evict, check and record
// happen atomically for every call.
type Limiter struct {
	mu        sync.Mutex
	buckets   map[string][]time.Time
	maxEvents int
	window    time.Duration

	now      func() time.Time
	onDrop   func()
	onUpdate func(count int)
	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a per-sender limiter.
//
//	limiter := ratelimit.New(ratelimit.Config{
//	    MaxEvents:     20,
//	    Window:        time.Minute,
//	    CleanupPeriod: 5 * time.Minute,
//	})
//	defer limiter.Stop()
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
	l.maxEvents, l.window = floorLimits(cfg.MaxEvents, cfg.Window)

	if cfg.Metrics != nil {
		l.onDrop = cfg.Metrics.RecordRateLimiterDrop
		l.onUpdate = cfg.Metrics.SetRateLimiterSenders
	}
	for _, opt := range opts {
		opt(l)
	}

	if cfg.CleanupPeriod > 0 {
		go l.cleanupLoop(cfg.CleanupPeriod)
	}
	return l
}

// Allow reports whether the sender may send another message now.
// On success the current time is recorded; refusals leave the bucket untouched.
func (l *Limiter) Allow(sender string) bool {
	l.mu.Lock()
	now := l.now()
	bucket := evict(l.buckets[sender], now.Add(-l.window))
	if len(bucket) >= l.maxEvents {
		l.buckets[sender] = bucket
		l.mu.Unlock()
		if l.onDrop != nil {
			l.onDrop()
		}
		return false
	}
	l.buckets[sender] = append(bucket, now)
	l.mu.Unlock()
	return true
}

// UpdateLimits replaces the limits used by subsequent Allow calls.
// Both values are floored at 1 (one event, one second).
func (l *Limiter) UpdateLimits(maxEvents int, window time.Duration) {
	maxEvents, window = floorLimits(maxEvents, window)

	l.mu.Lock()
	l.maxEvents = maxEvents
	l.window = window
	l.mu.Unlock()
}

// Limits returns the current configuration.
func (l *Limiter) Limits() (int, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.maxEvents, l.window
}

// ActiveSenders returns the number of tracked buckets.
func (l *Limiter) ActiveSenders() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Cleanup drops buckets whose timestamps have all expired and returns
// the number of senders still tracked.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	cutoff := l.now().Add(-l.window)
	for sender, bucket := range l.buckets {
		bucket = evict(bucket, cutoff)
		if len(bucket) == 0 {
			delete(l.buckets, sender)
			continue
		}
		l.buckets[sender] = bucket
	}
	l.mu.Unlock()

	active := l.ActiveSenders()

	if l.onUpdate != nil {
		l.onUpdate(active)
	}
	return active
}

func (l *Limiter) cleanupLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

// Stop stops the cleanup goroutine.
// Safe to call multiple times.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// evict removes leading timestamps strictly older than cutoff; an entry
// exactly one window old still counts.
// Timestamps are appended in order, so the bucket stays sorted.
func evict(bucket []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(bucket) && bucket[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return bucket
	}
	return append(bucket[:0], bucket[i:]...)
}

func floorLimits(maxEvents int, window time.Duration) (int, time.Duration) {
	if maxEvents < 1 {
		maxEvents = 1
	}
	if window < time.Second {
		window = time.Second
	}
	return maxEvents, window
}
