package storage

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	MaxRetries = 3
	RetryDelay = 10 * time.Millisecond
)

// RetryPolicy bounds how often a unit of work is re-run after a write conflict.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: MaxRetries, Delay: RetryDelay}
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// policy's attempts are used up. The last error is returned as is.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = RetryDelay
	}
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(delay))

	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := fn(ctx)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
