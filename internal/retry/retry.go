// Package retry applies a bounded exponential backoff policy to blocking calls.
package retry

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/nabijung/thepilatesapp-sub000/internal/migerr"
)

// Policy bounds how an operation is retried.
type Policy struct {
	// MaxRetries is the number of attempts after the first.
	MaxRetries int
	// Delay is the wait before the first retry; later waits double up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	// Jitter randomizes each wait by up to this fraction.
	Jitter float64
	// AttemptTimeout aborts a single attempt; zero means no per-attempt limit.
	AttemptTimeout time.Duration
	// Retryable decides whether an error is worth another attempt. Nil uses
	// IsTransient.
	Retryable func(error) bool
}

// Notify is called before each wait with the attempt that failed (1-based).
type Notify func(attempt int, err error, wait time.Duration)

// IsTransient reports whether err is a network failure, a 5xx/429 response or
// an attempt timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if migerr.Is(err, migerr.KindTransient) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Do runs op until it succeeds, fails with a non-retryable error, exhausts the
// policy, or ctx ends. Each attempt gets its own timeout-bound context.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.Delay
	eb.Multiplier = 2
	eb.RandomizationFactor = p.Jitter
	eb.MaxInterval = p.MaxDelay
	if eb.MaxInterval < eb.InitialInterval {
		eb.MaxInterval = eb.InitialInterval
	}

	attempt := 0
	operation := func() (T, error) {
		attempt++
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()

		res, err := op(attemptCtx)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil || !retryable(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(p.MaxRetries + 1)),
		backoff.WithMaxElapsedTime(0),
	}
	if notify != nil {
		opts = append(opts, backoff.WithNotify(func(err error, wait time.Duration) {
			notify(attempt, err, wait)
		}))
	}
	return backoff.Retry(ctx, operation, opts...)
}
