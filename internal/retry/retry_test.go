package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("connection reset")

func fastPolicy() Policy {
	return Policy{Attempts: 5, BackoffFactor: time.Millisecond}
}

func TestDelay(t *testing.T) {
	p := Policy{Attempts: 5, BackoffFactor: 10 * time.Second}
	require.Equal(t, time.Duration(0), p.Delay(1))
	require.Equal(t, 10*time.Second, p.Delay(2))
	require.Equal(t, 20*time.Second, p.Delay(3))
	require.Equal(t, 40*time.Second, p.Delay(4))
	require.Equal(t, 80*time.Second, p.Delay(5))
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	for k := 0; k < 5; k++ {
		calls := 0
		attempts, err := fastPolicy().Do(context.Background(), func(context.Context) error {
			calls++
			if calls <= k {
				return errFlaky
			}
			return nil
		}, nil)
		require.NoError(t, err, "k=%d", k)
		require.Equal(t, k+1, attempts, "k=%d", k)
		require.Equal(t, k+1, calls, "k=%d", k)
	}
}

func TestDo_ExhaustsBudget(t *testing.T) {
	calls := 0
	attempts, err := fastPolicy().Do(context.Background(), func(context.Context) error {
		calls++
		return errFlaky
	}, nil)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 5, attempts)
	require.Equal(t, 5, calls)
}

func TestDo_NotifiesWithExponentialWaits(t *testing.T) {
	p := fastPolicy()
	var waits []time.Duration
	var seen []int
	_, err := p.Do(context.Background(), func(context.Context) error {
		return errFlaky
	}, func(_ error, attempt int, wait time.Duration) {
		seen = append(seen, attempt)
		waits = append(waits, wait)
	})
	require.Error(t, err)
	require.Equal(t, []int{1, 2, 3, 4}, seen)
	require.Equal(t, []time.Duration{p.Delay(2), p.Delay(3), p.Delay(4), p.Delay(5)}, waits)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	attempts, err := fastPolicy().Do(context.Background(), func(context.Context) error {
		return Permanent(errFlaky)
	}, nil)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, attempts)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	p := Policy{Attempts: 5, BackoffFactor: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	attempts, err := p.Do(ctx, func(context.Context) error { return errFlaky }, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, attempts)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	attempts, err := Policy{}.Do(context.Background(), func(context.Context) error { return errFlaky }, nil)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 1, attempts)
}

func TestIsPermanent(t *testing.T) {
	require.True(t, IsPermanent(Permanent(errFlaky)))
	require.False(t, IsPermanent(errFlaky))
	require.Nil(t, Permanent(nil))
}
