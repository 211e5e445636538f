package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-engine-go/pkg/qerr"
)

func fastRetry() []RetryOption {
	return []RetryOption{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}
}

func TestRetry_SucceedsAfterRetryableErrors(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return qerr.Exhausted(time.Millisecond)
		}
		return nil
	}, fastRetry()...)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return qerr.Validation("bad input")
	}, fastRetry()...)
	assert.ErrorIs(t, err, qerr.ErrValidation)
	assert.Equal(t, 1, attempts)

	attempts = 0
	plain := errors.New("plain")
	err = Retry(context.Background(), func() error {
		attempts++
		return plain
	}, fastRetry()...)
	assert.Same(t, plain, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_PoolClosedIsNotRetried(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return qerr.PoolClosed()
	}, fastRetry()...)
	assert.ErrorIs(t, err, qerr.ErrPoolClosed)
	assert.Equal(t, 1, attempts)
}

func TestRetry_Exhausted(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		return qerr.Connection(errors.New("connection reset"))
	}, append(fastRetry(), WithMaxAttempts(4), WithBackoffFactor(3))...)
	assert.ErrorIs(t, err, ErrRetryExhausted)
	assert.ErrorIs(t, err, qerr.ErrConnection)
	assert.Equal(t, 4, attempts)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Retry(ctx, func() error {
		attempts++
		cancel()
		return qerr.Exhausted(time.Millisecond)
	}, WithInitialDelay(time.Hour))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithResult(t *testing.T) {
	attempts := 0
	n, err := RetryWithResult(context.Background(), func() (int, error) {
		attempts++
		if attempts == 1 {
			return 0, qerr.Exhausted(time.Millisecond)
		}
		return 42, nil
	}, fastRetry()...)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}
