package adapter

import (
	"context"
	"fmt"
	"time"
)

// DefaultBackoff is the delay before the first retry. Each later retry
// doubles it.
const DefaultBackoff = 500 * time.Millisecond

// RetryPolicy describes how a publish is retried.
type RetryPolicy struct {
	// Retries is the number of attempts after the first.
	Retries int
	// Backoff is the delay before the first retry (default DefaultBackoff).
	Backoff time.Duration
	// Permanent reports errors that must not be retried. Nil retries all.
	Permanent func(error) bool
}

// Retry calls attempt until it succeeds, returns a permanent error, the
// attempts run out, or ctx is done. name prefixes returned errors.
func Retry(ctx context.Context, name string, p RetryPolicy, attempt func(ctx context.Context) error) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + max(p.Retries, 0)

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * backoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Permanent != nil && p.Permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
