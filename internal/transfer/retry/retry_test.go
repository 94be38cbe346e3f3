package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy_Delay(t *testing.T) {
	p := Policy{MaxRetries: 5, BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second}

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 3*time.Second, p.Delay(4), "capped")
	assert.Equal(t, 3*time.Second, p.Delay(40), "capped without overflow")
}

func TestBackoff_StateMachine(t *testing.T) {
	b := DefaultPolicy().NewBackoff()

	assert.Equal(t, 500*time.Millisecond, b.NextBackOff())
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, backoff.Stop, b.NextBackOff())
	assert.Equal(t, 3, b.Attempt())

	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, 500*time.Millisecond, b.NextBackOff())
}

func TestDo(t *testing.T) {
	errTransient := errors.New("transient")
	errFatal := errors.New("fatal")
	fast := Policy{MaxRetries: 3, BaseDelay: time.Millisecond}

	tests := []struct {
		name      string
		failFirst int
		permanent bool
		wantCalls int
		wantErr   error
	}{
		{name: "first attempt succeeds", failFirst: 0, wantCalls: 1},
		{name: "succeeds on second retry", failFirst: 2, wantCalls: 3},
		{name: "succeeds on last retry", failFirst: 3, wantCalls: 4},
		{name: "exhausts retries", failFirst: 10, wantCalls: 4, wantErr: errTransient},
		{name: "permanent error stops", failFirst: 10, permanent: true, wantCalls: 1, wantErr: errFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			var notified []time.Duration
			err := Do(context.Background(), fast, func(context.Context) error {
				calls++
				if calls <= tt.failFirst {
					if tt.permanent {
						return Permanent(errFatal)
					}
					return errTransient
				}
				return nil
			}, func(_ error, next time.Duration) {
				notified = append(notified, next)
			})

			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, notified, tt.wantCalls-1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, Policy{MaxRetries: 5, BaseDelay: time.Millisecond}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func TestDo_InjectedTimer(t *testing.T) {
	timer := &instantTimer{}
	p := Policy{MaxRetries: 3, BaseDelay: time.Hour, Timer: timer}

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return errors.New("always")
	}, nil)

	require.Error(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Hour, 2 * time.Hour, 4 * time.Hour}, timer.waits)
}
