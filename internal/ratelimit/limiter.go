package ratelimit

import (
	"context"
	"time"
)

// DefaultInterval is the default spacing between requests. One request
// per second is a politeness setting toward the remote service; the crawl
// is deliberately sequential, so this interval dominates total wall time.
const DefaultInterval = 1 * time.Second

// Limiter spaces out calls so that no two consecutive calls begin less
// than the configured interval apart, measured from the start of the
// previous call. There is no fairness logic: the crawl is single-threaded
// and a single caller owns the limiter.
type Limiter struct {
	// interval is the minimum time between the starts of two calls.
	interval time.Duration

	// last is when the previous call was allowed to start.
	// Zero means no call has been made yet.
	last time.Time

	// now and sleep are indirected so tests can run without real delays.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the limiter's time source and sleep function.
// Intended for tests; production code should rely on the defaults.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
		if sleep != nil {
			l.sleep = sleep
		}
	}
}

// New creates a Limiter with the given minimum interval.
// A non-positive interval disables waiting entirely.
func New(interval time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		interval: interval,
		now:      time.Now,
		sleep:    contextSleep,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Wait blocks until the interval since the previous call has elapsed,
// then records the current time as the start of the next call. The first
// call never waits. Wait returns early with the context's error if the
// context is cancelled during the sleep; in that case the call slot is
// not consumed.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.interval > 0 && !l.last.IsZero() {
		elapsed := l.now().Sub(l.last)
		if remaining := l.interval - elapsed; remaining > 0 {
			if err := l.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	l.last = l.now()
	return nil
}

// Interval returns the configured minimum spacing between calls.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// contextSleep sleeps for d or until ctx is cancelled.
func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
