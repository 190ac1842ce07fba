package orchestrator

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Cooldown paces the loop between iterations. A clean dispatch pauses
// for the base interval; consecutive failed dispatches stretch the
// pause exponentially so a broken executor is not hammered at full
// speed for the whole iteration budget.
type Cooldown struct {
	policy *backoff.ExponentialBackOff
	next   time.Duration
}

// NewCooldown returns a Cooldown with the given base interval. A base
// of zero or less disables pausing entirely, which tests rely on.
func NewCooldown(base time.Duration) *Cooldown {
	if base <= 0 {
		return &Cooldown{}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = base
	policy.RandomizationFactor = 0
	policy.Multiplier = 2.0
	policy.MaxInterval = 10 * base
	// Zero means NextBackOff never gives up with backoff.Stop.
	policy.MaxElapsedTime = 0
	policy.Reset()

	return &Cooldown{
		policy: policy,
		next:   base,
	}
}

// Observe records the outcome of the last dispatch. A nil error resets
// the pause to the base interval; an error escalates it.
func (c *Cooldown) Observe(err error) {
	if c.policy == nil {
		return
	}
	if err == nil {
		c.policy.Reset()
		c.next = c.policy.NextBackOff()
		return
	}
	c.next = c.policy.NextBackOff()
}

// Wait blocks for the current pause, or until ctx is done.
func (c *Cooldown) Wait(ctx context.Context) error {
	if c.policy == nil || c.next <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(c.next)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
