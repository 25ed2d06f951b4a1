package gateway

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	ierr "github.com/developer-chetaru/tribe365-billing/internal/errors"
)

// WithRetry retries an idempotent gateway read with exponential backoff.
// Only errors marked ErrGatewayUnavailable are retried; API rejections
// surface immediately. Mutating calls must not be wrapped here.
func WithRetry(ctx context.Context, fn func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if ierr.IsGatewayUnavailable(err) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(policy, ctx))
}
