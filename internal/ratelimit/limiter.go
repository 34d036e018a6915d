// Package ratelimit spaces outbound provider calls.
package ratelimit

import (
	"context"
	"time"
)

// DefaultInterval matches a 15 requests per minute provider budget.
const DefaultInterval = 4 * time.Second

// Limiter grants slots no closer together than a fixed interval.
// The zero value is not usable; construct with New. A Limiter is safe for
// concurrent use and belongs to exactly one provider adapter.
type Limiter struct {
	interval time.Duration

	// slot is a one-element semaphore guarding last. Holding it while
	// sleeping queues later callers behind the current one.
	slot chan struct{}
	last time.Time

	granted func(time.Time)
}

// New returns a Limiter with the given minimum interval. A non-positive
// interval selects DefaultInterval.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Limiter{
		interval: interval,
		slot:     make(chan struct{}, 1),
	}
}

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Wait blocks until the next slot may be granted or ctx is done. On success
// at least Interval has elapsed since the previous grant. A cancelled wait
// does not consume a slot.
func (l *Limiter) Wait(ctx context.Context) error {
	select {
	case l.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-l.slot }()

	if !l.last.IsZero() {
		if remaining := l.interval - time.Since(l.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}

	l.last = time.Now()
	if l.granted != nil {
		l.granted(l.last)
	}
	return nil
}
