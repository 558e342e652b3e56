package channels

import (
	"context"

	"golang.org/x/time/rate"
)

// SendLimiter throttles an adapter's outbound sends to respect a
// platform's API rate limits, independent of the Reconnector backoff
// (which governs reconnect attempts, not steady-state send rate).
type SendLimiter struct {
	limiter *rate.Limiter
}

// NewSendLimiter builds a token-bucket limiter allowing ratePerSecond
// sustained sends with burst headroom.
func NewSendLimiter(ratePerSecond float64, burst int) *SendLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &SendLimiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a send token is available or ctx is cancelled.
func (l *SendLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
