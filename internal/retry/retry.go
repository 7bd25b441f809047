// Package retry implements the bounded retry policy shared by every network
// call site: a fixed number of attempts, a per-attempt timeout and an
// exponential wait between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 10 * time.Second
	DefaultInitialWait = time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Timeout bounds a single attempt. Zero means no per-attempt deadline.
	Timeout time.Duration
	// NewBackOff returns a fresh wait schedule for one call to Do.
	NewBackOff func() backoff.BackOff
	// Sleep waits between attempts. Defaults to SleepContext.
	Sleep SleepFunc
	// Notify is called before each wait with the error of the failed attempt.
	Notify backoff.Notify
}

// Default returns the policy used for EPIC requests: 3 attempts, 10s per
// attempt, waiting 1s, 2s, 4s... between them.
func Default() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Timeout:     DefaultTimeout,
		NewBackOff:  Exponential(DefaultInitialWait),
	}
}

// Exponential returns a schedule that doubles from initial without jitter, so
// the wait before retry n (0-based) is initial * 2^n.
func Exponential(initial time.Duration) func() backoff.BackOff {
	return func() backoff.BackOff {
		return &backoff.ExponentialBackOff{
			InitialInterval:     initial,
			RandomizationFactor: 0,
			Multiplier:          2,
			MaxInterval:         time.Hour,
		}
	}
}

// ExhaustedError is returned when every attempt failed.
type ExhaustedError struct {
	Attempts int   // Number of attempts made
	Err      error // Error of the last attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error
// immediately.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the context is
// cancelled or the attempts run out.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	schedule := p.backOff()

	var err error

	made := 0

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := schedule.NextBackOff()
			if wait == backoff.Stop {
				break
			}

			if p.Notify != nil {
				p.Notify(err, wait)
			}

			if sleepErr := p.sleep(ctx, wait); sleepErr != nil {
				return fmt.Errorf("retry interrupted after %d attempts: %w", made, sleepErr)
			}
		}

		made++

		err = p.attempt(ctx, op)
		if err == nil {
			return nil
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}

		if ctx.Err() != nil {
			return err
		}
	}

	return &ExhaustedError{Attempts: made, Err: err}
}

// Value is Do for operations that produce a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T

	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}

		result = v

		return nil
	})

	return result, err
}

func (p Policy) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	return op(ctx)
}

func (p Policy) backOff() backoff.BackOff {
	if p.NewBackOff == nil {
		return Exponential(DefaultInitialWait)()
	}

	return p.NewBackOff()
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep == nil {
		return SleepContext(ctx, d)
	}

	return p.Sleep(ctx, d)
}

// SleepContext waits for d, returning early with the context error if ctx is
// done first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
