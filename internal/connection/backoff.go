package connection

import (
	"math/rand/v2"
	"time"
)

// Backoff computes capped exponential reconnect delays with jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Factor float64
	Jitter float64 // fraction of the delay, 0..1
}

// DefaultBackoff provides conservative reconnect defaults.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   time.Second,
		Max:    60 * time.Second,
		Factor: 2.0,
		Jitter: 0.2,
	}
}

// Next returns the delay before the given attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	wait := b.ceiling(attempt)
	if b.Jitter <= 0 {
		return wait
	}
	jitter := b.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	wait = wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
	if max := b.max(); wait > max {
		wait = max
	}
	return wait
}

// ceiling is the un-jittered delay for an attempt.
func (b Backoff) ceiling(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	max := b.max()
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := base
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next >= max {
			return max
		}
		wait = next
	}
	if wait > max {
		return max
	}
	return wait
}

func (b Backoff) max() time.Duration {
	if b.Max <= 0 {
		return 60 * time.Second
	}
	return b.Max
}
