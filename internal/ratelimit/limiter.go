// Package ratelimit paces calls to a quota-limited model API with a sliding
// per-minute window and a per-day cap that resets at local midnight.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/doppel/internal/clock"
)

const (
	window         = time.Minute
	windowSlack    = time.Second
	midnightBuffer = 10 * time.Second

	DefaultPerMinute = 14
	DefaultPerDay    = 1400
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Limiter admits at most perMinute calls in any 60s window and perDay calls
// per calendar day.
type Limiter struct {
	mu        sync.Mutex
	perMinute int
	perDay    int
	clock     clock.Clock
	sleep     Sleeper
	logger    *slog.Logger

	calls []time.Time
	daily int
	day   time.Time
}

// New creates a limiter. Non-positive limits fall back to the defaults.
func New(perMinute, perDay int, clk clock.Clock, logger *slog.Logger) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if perDay <= 0 {
		perDay = DefaultPerDay
	}
	return &Limiter{
		perMinute: perMinute,
		perDay:    perDay,
		clock:     clk,
		sleep:     sleepContext,
		logger:    logger,
	}
}

// WithSleeper replaces the sleep function. Tests use it to advance a fake
// clock instead of blocking.
func (l *Limiter) WithSleeper(s Sleeper) *Limiter {
	l.sleep = s
	return l
}

// Wait blocks until a call is admitted and records it. It returns early only
// when ctx is cancelled, in which case the call is not recorded.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	today := dayOf(now)
	if l.day.IsZero() || !today.Equal(l.day) {
		l.daily = 0
		l.day = today
	}

	if l.daily >= l.perDay {
		d := today.AddDate(0, 0, 1).Add(midnightBuffer).Sub(now)
		l.logger.Warn("daily request cap reached, sleeping until midnight",
			"cap", l.perDay, "sleep", d.Round(time.Second).String())
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
		now = l.clock.Now()
		l.daily = 0
		l.day = dayOf(now)
	}

	l.prune(now)

	if len(l.calls) >= l.perMinute {
		d := window - now.Sub(l.calls[0]) + windowSlack
		l.logger.Info("per-minute request cap reached, sleeping",
			"cap", l.perMinute, "sleep", d.Round(time.Millisecond).String())
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
		now = l.clock.Now()
		l.prune(now)
	}

	l.calls = append(l.calls, now)
	l.daily++
	return nil
}

// Daily returns the number of calls recorded today.
func (l *Limiter) Daily() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.daily
}

func (l *Limiter) prune(now time.Time) {
	keep := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < window {
			keep = append(keep, t)
		}
	}
	l.calls = keep
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
