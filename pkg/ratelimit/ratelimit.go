package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces downstream writes. It is constructed once at the process
// entry point and passed by reference to everything that issues bulk writes;
// there is no package-level instance.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter returns a limiter that releases one permit per interval, with a
// burst of one so pacing is strict. A non-positive interval disables pacing.
func NewLimiter(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next permit is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
