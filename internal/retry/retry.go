package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy bounds how often an operation is attempted.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration // Fixed pause between attempts
}

// Do runs op until it succeeds, the attempts are used up, or ctx is done.
// onRetry, when non-nil, is called after every failed attempt that will be retried.
func Do(ctx context.Context, p Policy, op func(attempt int) error, onRetry func(attempt int, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(attempt); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}

		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, err)
}
