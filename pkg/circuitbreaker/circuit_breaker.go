package circuitbreaker

import (
	"errors"
	"time"
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return "closed"
	}
}

// ErrOpen is returned by Execute when the breaker refuses to run fn, either
// because it is open or because the half-open probe quota is used up.
var ErrOpen = errors.New("circuit breaker is open")

type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	Name() string
	State() State
}

type Config struct {
	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32
	// Interval is the cyclic period after which closed-state counts reset.
	// Zero never resets them.
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
	IsSuccessful        func(err error) bool
	OnStateChange       func(name string, from, to State)
}

type Option func(*Config)

func WithMaxRequests(n uint32) Option {
	return func(c *Config) {
		c.MaxRequests = n
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Config) {
		c.Interval = d
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithConsecutiveFailures trips the breaker after n failures in a row.
func WithConsecutiveFailures(n uint32) Option {
	return func(c *Config) {
		c.ConsecutiveFailures = n
	}
}

// WithIsSuccessful decides which errors do not count as failures.
func WithIsSuccessful(fn func(err error) bool) Option {
	return func(c *Config) {
		c.IsSuccessful = fn
	}
}

func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

func ApplyOptions(opts ...Option) *Config {
	c := &Config{
		MaxRequests:         1,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
