package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FatalError marks a failure that retrying cannot fix (rejected credentials,
// malformed requests). Do propagates it immediately without further attempts.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so that Do will not retry it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err is (or wraps) a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Policy describes how attempts are spaced. MaxAttempts counts the first
// attempt, so MaxAttempts=1 means no retries at all.
type Policy struct {
	MaxAttempts int
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
	Fixed       bool
}

// FixedDelay waits the same delay between each attempt.
func FixedDelay(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Base: delay, Fixed: true}
}

// Exponential grows the delay by multiplier per attempt, capped.
func Exponential(attempts int, base time.Duration, multiplier float64, cap time.Duration) Policy {
	return Policy{MaxAttempts: attempts, Base: base, Multiplier: multiplier, Cap: cap}
}

func (p Policy) backoff(ctx context.Context) backoff.BackOff {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var bo backoff.BackOff
	if p.Fixed {
		bo = backoff.NewConstantBackOff(p.Base)
	} else {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = p.Base
		if p.Multiplier > 0 {
			eb.Multiplier = p.Multiplier
		}
		if p.Cap > 0 {
			eb.MaxInterval = p.Cap
		}
		eb.MaxElapsedTime = 0
		bo = eb
	}
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx)
}

// Do runs op, retrying transient failures per the policy. Fatal-classified
// errors stop the attempt loop immediately. The last failure is always
// surfaced to the caller.
func Do(ctx context.Context, pol Policy, op func() error) error {
	wrapped := func() error {
		err := op()
		if err != nil && IsFatal(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	return backoff.Retry(wrapped, pol.backoff(ctx))
}
