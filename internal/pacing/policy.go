// Package pacing runs work items one at a time under a swappable pacing policy.
package pacing

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Policy names accepted by New.
const (
	PolicyFixed = "fixed"
	PolicyRate  = "rate"
)

// Policy paces the tasks of a Sequence.
type Policy interface {
	// Wait blocks until the task with the given zero-based index may start.
	Wait(ctx context.Context, index int) error
}

// New builds the named policy. interval is the delay between tasks for
// "fixed" and the minimum spacing of task starts for "rate".
func New(name string, interval time.Duration, clock clockwork.Clock) (Policy, error) {
	if interval < 0 {
		return nil, fmt.Errorf("pacing interval must not be negative")
	}
	switch name {
	case PolicyFixed, "":
		return NewFixedDelay(interval, clock), nil
	case PolicyRate:
		return NewMinInterval(interval, clock), nil
	default:
		return nil, fmt.Errorf("unknown pacing policy %q", name)
	}
}

// FixedDelay sleeps a constant duration between consecutive tasks.
type FixedDelay struct {
	delay time.Duration
	clock clockwork.Clock
}

// NewFixedDelay constructs a FixedDelay.
func NewFixedDelay(delay time.Duration, clock clockwork.Clock) *FixedDelay {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &FixedDelay{delay: delay, clock: clock}
}

// Wait sleeps the delay before every task but the first.
func (p *FixedDelay) Wait(ctx context.Context, index int) error {
	if index == 0 {
		return nil
	}
	return sleep(ctx, p.clock, p.delay)
}

// MinInterval spaces task starts at least interval apart, so slow tasks do
// not pay the full delay again.
type MinInterval struct {
	limiter *rate.Limiter
	clock   clockwork.Clock
}

// NewMinInterval constructs a MinInterval backed by a single-token bucket.
func NewMinInterval(interval time.Duration, clock clockwork.Clock) *MinInterval {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &MinInterval{limiter: rate.NewLimiter(limit, 1), clock: clock}
}

// Wait blocks until a token is available.
func (p *MinInterval) Wait(ctx context.Context, _ int) error {
	now := p.clock.Now()
	r := p.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("pacing reservation refused")
	}
	if err := sleep(ctx, p.clock, r.DelayFrom(now)); err != nil {
		r.CancelAt(p.clock.Now())
		return err
	}
	return nil
}

func sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pacing wait canceled: %w", ctx.Err())
	case <-timer.Chan():
		return nil
	}
}
