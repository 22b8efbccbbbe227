package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/omnivault/crosschain-composer/internal/metrics"
)

// Limiter wraps a token-bucket rate limiter for outbound message sends.
// The rate is adjustable at runtime through the runtime-config watcher.
type Limiter struct {
	limiter *rate.Limiter
	chain   string
}

// NewLimiter creates a rate limiter that allows rps sends per second with
// a burst capacity of burst tokens.
func NewLimiter(rps float64, burst int, chain string) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		chain:   chain,
	}
}

// Wait blocks until the limiter allows one send, or ctx is done.
// Uses Reserve() to guarantee exactly one token is consumed per call.
func (l *Limiter) Wait(ctx context.Context) error {
	r := l.limiter.Reserve()
	if !r.OK() {
		return fmt.Errorf("rate: cannot reserve token")
	}
	delay := r.Delay()
	if delay > 0 {
		metrics.OutboundRateLimitWaits.WithLabelValues(l.chain).Inc()
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			r.Cancel()
			return ctx.Err()
		}
	}
	return nil
}

// SetRate replaces the rate and burst, taking effect for subsequent Wait
// calls. Zero or negative values are ignored.
func (l *Limiter) SetRate(rps float64, burst int) {
	if rps > 0 {
		l.limiter.SetLimit(rate.Limit(rps))
	}
	if burst > 0 {
		l.limiter.SetBurst(burst)
	}
}

// Rate returns the current rate and burst.
func (l *Limiter) Rate() (float64, int) {
	return float64(l.limiter.Limit()), l.limiter.Burst()
}
