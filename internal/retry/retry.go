// Package retry bounds external calls with a per-attempt timeout and retries
// idempotent reads a fixed number of times.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls a call. Attempts counts retries after the first try.
type Policy struct {
	Attempts int
	Backoff  time.Duration
	Timeout  time.Duration
}

// Permanent marks an error that must not be retried.
func Permanent(err error) error { return backoff.Permanent(err) }

// Once runs fn a single time under the policy timeout. Use it for writes.
func Once(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}

// linear waits step, 2*step, 3*step ... between attempts.
type linear struct {
	step time.Duration
	n    int
}

func (l *linear) NextBackOff() time.Duration {
	l.n++
	return time.Duration(l.n) * l.step
}

func (l *linear) Reset() { l.n = 0 }

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 0 {
		attempts = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(&linear{step: p.Backoff}, uint64(attempts)), ctx)
}

// Do runs fn until it succeeds, returns a Permanent error, the parent context
// ends, or the attempts are used up.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	return backoff.Retry(func() error {
		return Once(ctx, p.Timeout, fn)
	}, p.backOff(ctx))
}

// Value is Do for calls that return a result.
func Value[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	return backoff.RetryWithData(func() (T, error) {
		var out T
		err := Once(ctx, p.Timeout, func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		})
		return out, err
	}, p.backOff(ctx))
}
