// Package ratelimit enforces a minimum spacing between outbound gateway
// requests.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter grants at most one acquisition per configured interval. The
// check-and-update is atomic under concurrent callers: two back-to-back
// acquisitions can never both return within one interval.
type Limiter struct {
	limiter *rate.Limiter
}

// New creates a limiter with the given minimum spacing. A non-positive
// spacing disables limiting.
func New(spacing time.Duration) *Limiter {
	if spacing <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(spacing), 1)}
}

// Wait blocks until the caller may proceed or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
