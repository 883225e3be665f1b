package retry

import (
	"context"
	"time"

	pkgerrors "github.com/angelmondragon/foodrun-backend/pkg/errors"
	goretry "github.com/sethvargo/go-retry"
)

const defaultBase = 50 * time.Millisecond

// Do runs fn up to attempts times with exponential backoff. Only errors
// that pkg/errors marks retryable (dependency failures) are retried; every
// other error is returned on the first failure.
func Do(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	return DoWithBase(ctx, attempts, defaultBase, fn)
}

// DoWithBase is Do with an explicit initial backoff.
func DoWithBase(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = defaultBase
	}
	backoff := goretry.WithMaxRetries(uint64(attempts-1), goretry.WithJitterPercent(10, goretry.NewExponential(base)))
	return goretry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && pkgerrors.Retryable(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}
