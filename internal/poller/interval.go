package poller

import (
	"context"
	"time"

	"github.com/tickerwatch/ingester/internal/model"
)

// IntervalPolicy maps time remaining until UTC midnight to a poll interval.
type IntervalPolicy struct {
	NearWindow   time.Duration
	NearInterval time.Duration
	MidWindow    time.Duration
	MidInterval  time.Duration
	BaseInterval time.Duration
}

// DefaultIntervalPolicy returns the standard 10m/30m thresholds.
func DefaultIntervalPolicy() IntervalPolicy {
	return IntervalPolicy{
		NearWindow:   10 * time.Minute,
		NearInterval: 60 * time.Second,
		MidWindow:    30 * time.Minute,
		MidInterval:  180 * time.Second,
		BaseInterval: 300 * time.Second,
	}
}

// Select returns the poll interval for the given remaining time.
func (p IntervalPolicy) Select(remaining time.Duration) time.Duration {
	switch {
	case remaining <= p.NearWindow:
		return p.NearInterval
	case remaining <= p.MidWindow:
		return p.MidInterval
	default:
		return p.BaseInterval
	}
}

// SelectInterval applies the default policy.
func SelectInterval(remaining time.Duration) time.Duration {
	return DefaultIntervalPolicy().Select(remaining)
}

// UntilMidnight returns the time left in t's UTC day.
func UntilMidnight(t time.Time) time.Duration {
	return model.DayBucket(t).Add(24 * time.Hour).Sub(t)
}

// untilNextHour returns the time until the next UTC hour boundary.
func untilNextHour(t time.Time) time.Duration {
	return model.HourBucket(t).Add(time.Hour).Sub(t)
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
