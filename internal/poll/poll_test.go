package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withFakeSleep(t *testing.T) *int {
	t.Helper()
	original := sleep
	t.Cleanup(func() { sleep = original })
	sleeps := 0
	sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}
	return &sleeps
}

func TestUntil_SucceedsFirstAttempt(t *testing.T) {
	sleeps := withFakeSleep(t)

	calls := 0
	err := Until(context.Background(), time.Second, 5, func(ctx context.Context) (bool, error) {
		calls++
		return true, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, *sleeps)
}

func TestUntil_SucceedsAfterRetries(t *testing.T) {
	sleeps := withFakeSleep(t)

	calls := 0
	err := Until(context.Background(), time.Second, 5, func(ctx context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, *sleeps)
}

func TestUntil_ExhaustsAttempts(t *testing.T) {
	withFakeSleep(t)

	calls := 0
	err := Until(context.Background(), time.Second, 4, func(ctx context.Context) (bool, error) {
		calls++
		return false, nil
	})

	assert.Error(t, err)
	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.Equal(t, 4, calls)
}

func TestUntil_ExhaustionWrapsLastError(t *testing.T) {
	withFakeSleep(t)

	probeErr := errors.New("disconnect control not visible")
	err := Until(context.Background(), time.Second, 3, func(ctx context.Context) (bool, error) {
		return false, probeErr
	})

	assert.ErrorIs(t, err, ErrAttemptsExhausted)
	assert.ErrorIs(t, err, probeErr)
}

func TestUntil_PredicateErrorDoesNotAbortLoop(t *testing.T) {
	withFakeSleep(t)

	calls := 0
	err := Until(context.Background(), time.Second, 5, func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("transient")
		}
		return true, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestUntil_InvalidAttemptBudget(t *testing.T) {
	err := Until(context.Background(), time.Second, 0, func(ctx context.Context) (bool, error) {
		t.Fatal("predicate should not run")
		return false, nil
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAttemptsExhausted)
}

func TestUntil_ContextCancellation(t *testing.T) {
	original := sleep
	t.Cleanup(func() { sleep = original })
	sleep = func(ctx context.Context, d time.Duration) error {
		return ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Until(ctx, time.Second, 10, func(ctx context.Context) (bool, error) {
		calls++
		cancel()
		return false, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
