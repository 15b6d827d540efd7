package implementation

import (
	"errors"
	"fmt"

	"github.com/jt828/go-trace-propagation/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

type gobreakerCircuitBreaker struct {
	cb *gobreaker.CircuitBreaker[any]
}

func NewCircuitBreaker(name string, opts ...circuitbreaker.Option) circuitbreaker.CircuitBreaker {
	cfg := circuitbreaker.ApplyOptions(opts...)

	settings := gobreaker.Settings{
		Name:         name,
		MaxRequests:  cfg.MaxRequests,
		Interval:     cfg.Interval,
		Timeout:      cfg.Timeout,
		IsSuccessful: cfg.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	if cfg.OnStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			cfg.OnStateChange(name, toState(from), toState(to))
		}
	}

	return &gobreakerCircuitBreaker{
		cb: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (g *gobreakerCircuitBreaker) Execute(fn func() (any, error)) (any, error) {
	v, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s", circuitbreaker.ErrOpen, g.cb.Name())
	}
	return v, err
}

func (g *gobreakerCircuitBreaker) Name() string {
	return g.cb.Name()
}

func (g *gobreakerCircuitBreaker) State() circuitbreaker.State {
	return toState(g.cb.State())
}

func toState(s gobreaker.State) circuitbreaker.State {
	switch s {
	case gobreaker.StateClosed:
		return circuitbreaker.Closed
	case gobreaker.StateHalfOpen:
		return circuitbreaker.HalfOpen
	case gobreaker.StateOpen:
		return circuitbreaker.Open
	default:
		return circuitbreaker.Closed
	}
}
