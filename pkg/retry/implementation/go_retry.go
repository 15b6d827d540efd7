package implementation

import (
	"context"

	"github.com/jt828/go-trace-propagation/pkg/retry"
	goretry "github.com/sethvargo/go-retry"
)

type goRetry struct {
	backoff     goretry.Backoff
	retryableFn func(err error) bool
	onRetry     func(attempt uint64, err error)
}

// NewRetry retries up to maxRetries times after the first attempt with an
// exponential backoff starting at the configured interval.
func NewRetry(maxRetries uint64, opts ...retry.Option) retry.Retry {
	cfg := retry.ApplyOptions(opts...)

	backoff := goretry.NewExponential(cfg.Interval)
	if cfg.MaxInterval > 0 {
		backoff = goretry.WithCappedDuration(cfg.MaxInterval, backoff)
	}
	if cfg.JitterPercent > 0 {
		backoff = goretry.WithJitterPercent(cfg.JitterPercent, backoff)
	}

	return &goRetry{
		backoff:     goretry.WithMaxRetries(maxRetries, backoff),
		retryableFn: cfg.RetryableFn,
		onRetry:     cfg.OnRetry,
	}
}

// NewNoRetry runs fn exactly once.
func NewNoRetry() retry.Retry {
	return NewRetry(0)
}

func (r *goRetry) Execute(ctx context.Context, fn func(ctx context.Context, attempt uint64) error) error {
	var attempt uint64
	return goretry.Do(ctx, r.backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		if r.retryableFn != nil && !r.retryableFn(err) {
			return err
		}

		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}
		return goretry.RetryableError(err)
	})
}
