package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRateLimiterFirstSubmissionAllowed(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	decision := limiter.CheckAndRecord("203.0.113.7", epoch)
	require.True(t, decision.Allowed)
	assert.Equal(t, epoch, decision.RecordedAt)
	assert.Equal(t, 1, limiter.Len())
}

func TestRateLimiterWindow(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	require.True(t, limiter.CheckAndRecord("alice", epoch).Allowed)

	decision := limiter.CheckAndRecord("alice", epoch.Add(10*time.Second))
	require.False(t, decision.Allowed)
	assert.Equal(t, 50*time.Second, decision.RetryAfter)
	assert.Equal(t, 50, decision.RetryAfterSeconds)

	decision = limiter.CheckAndRecord("alice", epoch.Add(59*time.Second+100*time.Millisecond))
	require.False(t, decision.Allowed)
	assert.Equal(t, 1, decision.RetryAfterSeconds)

	assert.True(t, limiter.CheckAndRecord("alice", epoch.Add(60*time.Second)).Allowed)
}

func TestRateLimiterRetryAfterWithinOneSecond(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	require.True(t, limiter.CheckAndRecord("c", epoch).Allowed)

	for _, offset := range []time.Duration{
		time.Millisecond, 999 * time.Millisecond, 30 * time.Second, 45500 * time.Millisecond, 59999 * time.Millisecond,
	} {
		decision := limiter.CheckAndRecord("c", epoch.Add(offset))
		require.False(t, decision.Allowed)

		trueRemaining := (DefaultWindow - offset).Seconds()
		assert.InDelta(t, trueRemaining, float64(decision.RetryAfterSeconds), 1.0, "offset=%s", offset)
	}
}

func TestRateLimiterAcceptedSpacing(t *testing.T) {
	limiter := NewRateLimiter(WithWindow(5 * time.Second))
	defer limiter.Close()

	var accepted []time.Time
	for i := 0; i < 100; i++ {
		now := epoch.Add(time.Duration(i) * 700 * time.Millisecond)
		if limiter.CheckAndRecord("c", now).Allowed {
			accepted = append(accepted, now)
		}
	}

	require.Greater(t, len(accepted), 1)
	for i := 1; i < len(accepted); i++ {
		assert.GreaterOrEqual(t, accepted[i].Sub(accepted[i-1]), 5*time.Second)
	}
}

func TestRateLimiterClientsAreIndependent(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	require.True(t, limiter.CheckAndRecord("a", epoch).Allowed)
	assert.True(t, limiter.CheckAndRecord("b", epoch).Allowed)
	assert.False(t, limiter.CheckAndRecord("a", epoch.Add(time.Second)).Allowed)
}

func TestRateLimiterSweepsStaleEntries(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	require.True(t, limiter.CheckAndRecord("old", epoch).Allowed)
	require.True(t, limiter.CheckAndRecord("recent", epoch.Add(90*time.Second)).Allowed)

	// exactly at retention the entry survives
	require.True(t, limiter.CheckAndRecord("trigger", epoch.Add(2*time.Minute)).Allowed)
	assert.Equal(t, 3, limiter.Len())

	require.True(t, limiter.CheckAndRecord("trigger2", epoch.Add(2*time.Minute+time.Second)).Allowed)
	assert.Equal(t, 3, limiter.Len())

	assert.Equal(t, 0, limiter.Sweep(epoch.Add(2*time.Minute+time.Second)))
	assert.Equal(t, 3, limiter.Sweep(epoch.Add(10*time.Minute)))
	assert.Equal(t, 0, limiter.Len())
}

func TestRateLimiterNegativeElapsed(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	require.True(t, limiter.CheckAndRecord("c", epoch).Allowed)
	decision := limiter.CheckAndRecord("c", epoch.Add(-5*time.Second))
	require.False(t, decision.Allowed)
	assert.Equal(t, 60, decision.RetryAfterSeconds)
}

func TestRateLimiterRelease(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	first := limiter.CheckAndRecord("c", epoch)
	require.True(t, first.Allowed)

	limiter.Release("c", first.RecordedAt)
	assert.Equal(t, 0, limiter.Len())
	assert.True(t, limiter.CheckAndRecord("c", epoch.Add(time.Second)).Allowed)

	// stale release must not drop the newer record
	limiter.Release("c", first.RecordedAt)
	assert.Equal(t, 1, limiter.Len())
	assert.False(t, limiter.CheckAndRecord("c", epoch.Add(2*time.Second)).Allowed)
}

func TestRateLimiterConcurrentSameClient(t *testing.T) {
	limiter := NewRateLimiter()
	defer limiter.Close()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.CheckAndRecord("same", epoch).Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), allowed.Load())
}

func TestRateLimiterJanitor(t *testing.T) {
	var mu sync.Mutex
	now := epoch
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	limiter := NewRateLimiter(WithClock(clock), WithSweepInterval(5*time.Millisecond))
	defer limiter.Close()

	require.True(t, limiter.CheckAndRecord("c", limiter.Now()).Allowed)

	mu.Lock()
	now = epoch.Add(5 * time.Minute)
	mu.Unlock()

	assert.Eventually(t, func() bool { return limiter.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRateLimiterCloseIdempotent(t *testing.T) {
	limiter := NewRateLimiter(WithSweepInterval(time.Millisecond))
	limiter.Close()
	limiter.Close()

	NewRateLimiter().Close()
}

func TestRateLimiterOptions(t *testing.T) {
	limiter := NewRateLimiter(WithWindow(10*time.Second), WithWindow(0))
	defer limiter.Close()

	assert.Equal(t, 10*time.Second, limiter.Window())
	assert.Equal(t, 20*time.Second, limiter.Retention())
}
