// Package retry implements bounded exponential backoff for per-part and
// per-range transfer operations.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how often and how slowly an operation is retried.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// BaseDelay is the wait before the first retry; each later retry doubles it
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration

	// Timer replaces the real clock between attempts. Nil uses time.Timer.
	Timer backoff.Timer
}

// DefaultPolicy returns three retries starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   30 * time.Second,
	}
}

// Delay returns the wait before the given retry attempt (1-based):
// BaseDelay * 2^(attempt-1).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Backoff is the retry state machine: an attempt counter and the delay it
// implies. It implements backoff.BackOff.
type Backoff struct {
	policy  Policy
	attempt int
}

var _ backoff.BackOff = (*Backoff)(nil)

// NewBackoff returns a fresh state machine for the policy.
func (p Policy) NewBackoff() *Backoff {
	return &Backoff{policy: p}
}

// NextBackOff advances to the next retry and returns its delay, or
// backoff.Stop once MaxRetries retries have been handed out.
func (b *Backoff) NextBackOff() time.Duration {
	if b.attempt >= b.policy.MaxRetries {
		return backoff.Stop
	}
	b.attempt++
	return b.policy.Delay(b.attempt)
}

// Reset returns the state machine to its initial state.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the number of retries handed out so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Notify is called before each retry with the failed attempt's error and
// the upcoming delay.
type Notify func(err error, next time.Duration)

// Do runs op until it succeeds, fails permanently, or the policy is
// exhausted. The last error is returned. Context cancellation stops the
// loop and returns the context error.
func Do(ctx context.Context, p Policy, op func(context.Context) error, notify Notify) error {
	b := backoff.WithContext(p.NewBackoff(), ctx)
	return backoff.RetryNotifyWithTimer(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return op(ctx)
	}, b, backoff.Notify(notify), p.Timer)
}

// Permanent marks err as not worth retrying. Do returns the unwrapped err.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
