package engine

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum spacing between accepted submissions per client.
const DefaultWindow = 60 * time.Second

// RateLimiter admits at most one submission per client per window. The table
// lives in memory and is lost on restart.
type RateLimiter struct {
	window        time.Duration
	retention     time.Duration
	sweepInterval time.Duration
	clock         func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Decision is the result of CheckAndRecord.
type Decision struct {
	Allowed bool
	// RecordedAt is the timestamp stored for the client when Allowed.
	RecordedAt time.Time
	// RetryAfter is the remaining wait when throttled.
	RetryAfter time.Duration
	// RetryAfterSeconds is RetryAfter rounded up to whole seconds.
	RetryAfterSeconds int
}

// Option configures a RateLimiter.
type Option func(*RateLimiter)

// WithWindow sets the window; non-positive values keep the default.
func WithWindow(window time.Duration) Option {
	return func(r *RateLimiter) {
		if window > 0 {
			r.window = window
		}
	}
}

// WithClock injects the time source used by Now.
func WithClock(clock func() time.Time) Option {
	return func(r *RateLimiter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithSweepInterval starts a background janitor that evicts stale entries on
// a ticker, in addition to the inline sweep on every accepted submission.
func WithSweepInterval(interval time.Duration) Option {
	return func(r *RateLimiter) {
		if interval > 0 {
			r.sweepInterval = interval
		}
	}
}

// NewRateLimiter builds a limiter. Call Close when done with it.
func NewRateLimiter(opts ...Option) *RateLimiter {
	r := &RateLimiter{
		window:  DefaultWindow,
		clock:   func() time.Time { return time.Now().UTC() },
		entries: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.retention = 2 * r.window

	if r.sweepInterval > 0 {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		go r.janitor()
	}
	return r
}

// CheckAndRecord admits clientID at now or reports how long it must wait.
// The check, the record and the sweep happen atomically, so two concurrent
// submissions from one client cannot both be admitted.
func (r *RateLimiter) CheckAndRecord(clientID string, now time.Time) Decision {
	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.entries[clientID]; ok {
		elapsed := now.Sub(last)
		if elapsed < 0 {
			elapsed = 0
		}
		if elapsed < r.window {
			remaining := r.window - elapsed
			return Decision{
				RetryAfter:        remaining,
				RetryAfterSeconds: ceilSeconds(remaining),
			}
		}
	}

	r.entries[clientID] = now
	r.sweepLocked(now)

	return Decision{Allowed: true, RecordedAt: now}
}

// Release forgets the record made for clientID at the given time. It does
// nothing if the entry has since been replaced.
func (r *RateLimiter) Release(clientID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.entries[clientID]; ok && last.Equal(at) {
		delete(r.entries, clientID)
	}
}

// Sweep removes entries older than the retention period and returns how many
// were removed.
func (r *RateLimiter) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(now)
}

func (r *RateLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for clientID, last := range r.entries {
		if now.Sub(last) > r.retention {
			delete(r.entries, clientID)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (r *RateLimiter) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Window returns the configured window.
func (r *RateLimiter) Window() time.Duration { return r.window }

// Retention returns how long an entry is kept after its last submission.
func (r *RateLimiter) Retention() time.Duration { return r.retention }

// Now reads the limiter's clock.
func (r *RateLimiter) Now() time.Time { return r.clock() }

// Close stops the background janitor, if any. Safe to call more than once.
func (r *RateLimiter) Close() {
	r.closeOnce.Do(func() {
		if r.stop != nil {
			close(r.stop)
			<-r.done
		}
	})
}

func (r *RateLimiter) janitor() {
	defer close(r.done)

	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.Sweep(r.clock())
		}
	}
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
