package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

// ErrRetryExhausted is returned when every attempt failed with a retryable
// error.
var ErrRetryExhausted = errors.New("retry attempts exhausted")

// RetryConfig controls Retry. Delays grow by BackoffFactor from
// InitialDelay up to MaxDelay; Jitter spreads each delay by ±25%.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

// DefaultRetryConfig returns three attempts starting at 100ms.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		Jitter:        true,
	}
}

// RetryOption customizes retry behavior.
type RetryOption func(*RetryConfig)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryConfig) {
		c.MaxAttempts = n
	}
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) {
		c.InitialDelay = d
	}
}

// WithMaxDelay sets the maximum retry delay.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(c *RetryConfig) {
		c.MaxDelay = d
	}
}

// WithBackoffFactor sets the exponential backoff factor.
func WithBackoffFactor(f float64) RetryOption {
	return func(c *RetryConfig) {
		c.BackoffFactor = f
	}
}

// WithJitter enables or disables delay randomization.
func WithJitter(enabled bool) RetryOption {
	return func(c *RetryConfig) {
		c.Jitter = enabled
	}
}

// Retry calls fn until it succeeds, fails with an error that is not
// retryable, or runs out of attempts. Pool timeouts and connection failures
// are retryable; validation and query errors are returned at once.
func Retry(ctx context.Context, fn func() error, opts ...RetryOption) error {
	config := DefaultRetryConfig()
	for _, opt := range opts {
		opt(config)
	}
	attempts := max(config.MaxAttempts, 1)

	randomization := 0.0
	if config.Jitter {
		randomization = 0.25
	}
	policy := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(config.InitialDelay),
		backoff.WithMaxInterval(config.MaxDelay),
		backoff.WithMultiplier(config.BackoffFactor),
		backoff.WithRandomizationFactor(randomization),
		backoff.WithMaxElapsedTime(0),
	)
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := fn()
		if err != nil && !qerr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	case !qerr.IsRetryable(err):
		return err
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
}

// RetryWithResult is Retry for functions returning a value.
func RetryWithResult[T any](ctx context.Context, fn func() (T, error), opts ...RetryOption) (T, error) {
	var result T
	err := Retry(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	}, opts...)
	return result, err
}
