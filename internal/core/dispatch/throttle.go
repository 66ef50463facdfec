package dispatch

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/contactd/contactd/internal/core"
)

// Throttled spaces out calls to the wrapped dispatcher with a token bucket,
// protecting the provider from bursts across many clients.
type Throttled struct {
	next    Dispatcher
	limiter *rate.Limiter
}

// NewThrottled wraps next. A non-positive rate disables throttling and
// returns next unchanged.
func NewThrottled(next Dispatcher, perSecond float64, burst int) Dispatcher {
	if next == nil || perSecond <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Name reports the wrapped dispatcher's name.
func (t *Throttled) Name() string { return t.next.Name() }

// Unwrap returns the wrapped dispatcher.
func (t *Throttled) Unwrap() Dispatcher { return t.next }

// Dispatch waits for a token, then delegates. Running out of time while
// waiting is a failure.
func (t *Throttled) Dispatch(ctx context.Context, sub core.Submission) core.DispatchResult {
	if err := t.limiter.Wait(ctx); err != nil {
		return core.Failed("dispatch throttled", err)
	}
	return t.next.Dispatch(ctx, sub)
}
