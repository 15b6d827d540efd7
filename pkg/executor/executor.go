// Package executor runs submitted tasks on a fixed set of worker goroutines.
// The submitter's context follows each task onto the worker through
// taskinterception, and completion of a task is reported as an
// *async.Future so callers can instrument it like any other async handle.
package executor

import (
	"context"
	"errors"

	"github.com/jt828/go-trace-propagation/pkg/async"
	"github.com/jt828/go-trace-propagation/pkg/circuitbreaker"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	"github.com/jt828/go-trace-propagation/pkg/retry"
	"github.com/jt828/go-trace-propagation/pkg/scope"
	"github.com/jt828/go-trace-propagation/pkg/snowflake"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
)

var (
	// ErrRejected fails a task the executor refused to queue: the queue was
	// full or the circuit breaker was open.
	ErrRejected = errors.New("executor: task rejected")
	ErrClosed   = errors.New("executor: closed")
)

type Executor interface {
	// Submit queues r, capturing the current context of local.
	Submit(local *scope.Local, r taskinterception.Runnable) *async.Future[struct{}]
	// SubmitContext queues r with ctx as the submitter's context.
	SubmitContext(ctx context.Context, r taskinterception.Runnable) *async.Future[struct{}]
	// Close stops accepting tasks and waits for queued ones to finish.
	Close(ctx context.Context) error
}

type Config struct {
	Name        string
	Workers     int
	QueueSize   int
	Retry       retry.Retry
	Breaker     circuitbreaker.CircuitBreaker
	IDs         snowflake.Snowflake
	Tracer      observability.Tracer
	Logger      observability.Logger
	Meter       observability.Meter
	Interceptor *taskinterception.Interceptor
}

type Option func(*Config)

func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

func WithQueueSize(n int) Option {
	return func(c *Config) {
		c.QueueSize = n
	}
}

// WithRetry reruns failing tasks. The task span covers all attempts.
func WithRetry(r retry.Retry) Option {
	return func(c *Config) {
		c.Retry = r
	}
}

// WithBreaker guards task execution. While the breaker is open submissions
// are rejected.
func WithBreaker(cb circuitbreaker.CircuitBreaker) Option {
	return func(c *Config) {
		c.Breaker = cb
	}
}

func WithIDs(ids snowflake.Snowflake) Option {
	return func(c *Config) {
		c.IDs = ids
	}
}

// WithTracer wraps every task run in its own span.
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Config) {
		c.Tracer = tracer
	}
}

func WithLogger(log observability.Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithMeter(meter observability.Meter) Option {
	return func(c *Config) {
		c.Meter = meter
	}
}

func WithInterceptor(icpt *taskinterception.Interceptor) Option {
	return func(c *Config) {
		c.Interceptor = icpt
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{
		Name:      "default",
		Workers:   4,
		QueueSize: 64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
