package core

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryUnavailable runs fn and retries it with exponential backoff while it fails
// with ErrDataUnavailable, at most maxRetries times. Other errors are returned at once.
func RetryUnavailable(ctx context.Context, maxRetries uint64, base time.Duration, fn func(ctx context.Context) error) error {
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(maxRetries, retry.NewExponential(base))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if IsUnavailable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
