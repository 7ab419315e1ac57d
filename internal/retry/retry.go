// Package retry re-runs flaky operations a bounded number of times with a
// fixed delay between attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	Attempts int
	Delay    time.Duration
}

// Do invokes op until it succeeds, returns a non-retryable error, or Attempts
// is exhausted. The delay is applied between attempts only. The last error
// observed is returned. A nil retryable treats every error as retryable.
func Do(ctx context.Context, op func() error, p Policy, retryable func(error) bool) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)
	return backoff.Retry(wrapped, b)
}
