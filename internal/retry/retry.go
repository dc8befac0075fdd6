// Package retry runs a single outbound call under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how many times an operation runs and how long to wait in between.
//
// Attempt 1 runs immediately. The wait before attempt k (k >= 2) is
// BackoffFactor * 2^(k-2), so the n-th retry waits BackoffFactor * 2^(n-1).
// There is no jitter: two runs of the same policy wait the same amounts.
type Policy struct {
	Attempts      int
	BackoffFactor time.Duration
}

// DefaultPolicy is 5 attempts with a 10 second backoff factor (10s, 20s, 40s, 80s).
func DefaultPolicy() Policy {
	return Policy{Attempts: 5, BackoffFactor: 10 * time.Second}
}

// Delay returns the wait before the given 1-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return p.BackoffFactor << (attempt - 2)
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BackoffFactor < 0 {
		p.BackoffFactor = 0
	}
	return p
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.BackoffFactor
	eb.RandomizationFactor = 0
	eb.Multiplier = 2
	eb.MaxInterval = p.Delay(p.Attempts)
	eb.MaxElapsedTime = 0
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.Attempts-1)), ctx)
}

// Notify is called after a failed attempt that will be retried.
type Notify func(err error, attempt int, wait time.Duration)

// Do runs op until it succeeds, returns a permanent error, the attempt budget is
// spent, or ctx is done. It returns the number of attempts made and the last error.
// A permanent error is returned unwrapped.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, notify Notify) (int, error) {
	p = p.normalized()

	attempts := 0
	err := backoff.RetryNotify(
		func() error {
			attempts++
			return op(ctx)
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			if notify != nil {
				notify(err, attempts, wait)
			}
		},
	)
	return attempts, err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var perr *backoff.PermanentError
	return errors.As(err, &perr)
}
