// Package poll provides a bounded condition-polling combinator. The Inspector
// UI rarely exposes explicit completion signals, so the harness repeatedly
// samples the DOM for evidence instead; this package owns the attempt and
// interval bookkeeping so the bound is testable without real delays.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted is returned when the predicate never succeeded within
// the attempt budget. Callers can distinguish it from selector timeouts
// bubbling out of the predicate itself.
var ErrAttemptsExhausted = errors.New("poll: attempts exhausted")

// sleep is swappable in tests so polling loops run without real time delays.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Until calls fn up to maxAttempts times, waiting interval between attempts,
// until it returns true. A true result ends the loop successfully. An error
// from fn is remembered but does not end the loop; only the context does.
// When the budget is exhausted the last observed error (if any) is wrapped
// alongside ErrAttemptsExhausted.
func Until(ctx context.Context, interval time.Duration, maxAttempts int, fn func(ctx context.Context) (bool, error)) error {
	if maxAttempts <= 0 {
		return fmt.Errorf("poll: maxAttempts must be positive, got %d", maxAttempts)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ok, err := fn(ctx)
		if ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < maxAttempts {
			if err := sleep(ctx, interval); err != nil {
				return err
			}
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, lastErr)
	}
	return fmt.Errorf("%w after %d attempts", ErrAttemptsExhausted, maxAttempts)
}
