package retry

import (
	"context"
	"time"
)

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. attempt starts at 1.
type Retry interface {
	Execute(ctx context.Context, fn func(ctx context.Context, attempt uint64) error) error
}

type Config struct {
	RetryableFn   func(err error) bool
	OnRetry       func(attempt uint64, err error)
	Interval      time.Duration
	MaxInterval   time.Duration
	JitterPercent uint64
}

type Option func(*Config)

func WithRetryable(fn func(err error) bool) Option {
	return func(c *Config) {
		c.RetryableFn = fn
	}
}

// WithOnRetry registers fn to be called with every retryable failure,
// including the last one when the attempts run out.
func WithOnRetry(fn func(attempt uint64, err error)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

func WithMaxInterval(d time.Duration) Option {
	return func(c *Config) {
		c.MaxInterval = d
	}
}

func WithJitterPercent(p uint64) Option {
	return func(c *Config) {
		c.JitterPercent = p
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{Interval: 10 * time.Millisecond}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
