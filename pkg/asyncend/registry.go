package asyncend

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jt828/go-trace-propagation/pkg/observability"
	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
)

// Registry holds the ordered list of strategies. Register and Unregister are
// serialised by a mutex; Instrument reads an immutable snapshot and never
// takes the lock.
type Registry struct {
	mu         sync.Mutex
	strategies atomic.Pointer[[]Strategy]

	log          observability.Logger
	signals      observability.Counter
	instrumented observability.Counter
}

type Option func(*Registry)

func WithLogger(log observability.Logger) Option {
	return func(r *Registry) {
		r.log = log
	}
}

func WithMeter(meter observability.Meter) Option {
	return func(r *Registry) {
		r.signals = meter.Counter("asyncend_terminal_signals_total", observability.MetricOpt{
			Help:      "Terminal signals seen by instrumented async values, by latch result",
			LabelKeys: []string{"result"},
		})
		r.instrumented = meter.Counter("asyncend_instrumented_total", observability.MetricOpt{
			Help:      "Async values instrumented, by strategy",
			LabelKeys: []string{"strategy"},
		})
	}
}

func WithStrategies(strategies ...Strategy) Option {
	return func(r *Registry) {
		for _, s := range strategies {
			r.Register(s)
		}
	}
}

// NewRegistry returns an empty registry unless WithStrategies is given.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{}
	empty := []Strategy{}
	r.strategies.Store(&empty)

	meter := observability.NopMeter()
	WithMeter(meter)(r)
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = obsImpl.NewNopLogger()
	}
	return r
}

// NewDefaultRegistry returns a registry with every built-in strategy.
func NewDefaultRegistry(opts ...Option) *Registry {
	defaults := WithStrategies(
		FutureStrategy{},
		MaybeStrategy{},
		ParallelStrategy{},
		StreamStrategy{},
		ChannelStrategy{},
	)
	return NewRegistry(append([]Option{defaults}, opts...)...)
}

// Register appends s. A strategy with the same name is replaced in place.
func (r *Registry) Register(s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.strategies.Load()
	next := make([]Strategy, 0, len(cur)+1)
	replaced := false
	for _, existing := range cur {
		if existing.Name() == s.Name() {
			next = append(next, s)
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, s)
	}
	r.strategies.Store(&next)
}

func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur := *r.strategies.Load()
	next := make([]Strategy, 0, len(cur))
	for _, s := range cur {
		if s.Name() != name {
			next = append(next, s)
		}
	}
	if len(next) == len(cur) {
		return false
	}
	r.strategies.Store(&next)
	return true
}

func (r *Registry) Strategies() []Strategy {
	cur := *r.strategies.Load()
	out := make([]Strategy, len(cur))
	copy(out, cur)
	return out
}

// Lookup returns the first strategy supporting handle.
func (r *Registry) Lookup(handle any) (Strategy, bool) {
	for _, s := range *r.strategies.Load() {
		if s.Supports(handle) {
			return s, true
		}
	}
	return nil, false
}

// Instrument arranges for end to run exactly once when handle terminates and
// returns the handle to hand back to the caller. A nil handle, or one no
// strategy supports, counts as synchronous completion: end runs right away
// and handle is returned unchanged.
func (r *Registry) Instrument(ctx context.Context, handle any, end EndFunc) any {
	c := newCompletion(r.guard(ctx, end), func() {
		r.signals.Inc(1, observability.Label{Key: "result", Value: "lost"})
	})

	if isNil(handle) {
		c.Succeed(nil)
		return handle
	}

	s, ok := r.Lookup(handle)
	if !ok {
		c.Succeed(handle)
		return handle
	}

	wrapped, err := r.instrument(ctx, s, handle, c)
	if err != nil {
		r.log.Error("async end strategy failed, ending synchronously",
			observability.String("strategy", s.Name()),
			observability.Err(err))
		c.Fail(err)
		return handle
	}
	r.instrumented.Inc(1, observability.Label{Key: "strategy", Value: s.Name()})
	return wrapped
}

func (r *Registry) instrument(ctx context.Context, s Strategy, handle any, c *Completion) (wrapped any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("strategy %s panicked: %v", s.Name(), rec)
		}
	}()
	return s.Instrument(ctx, handle, c), nil
}

// guard keeps a panicking end-action from escaping into the goroutine that
// happened to deliver the terminal signal.
func (r *Registry) guard(ctx context.Context, end EndFunc) func(Outcome) {
	return func(o Outcome) {
		r.signals.Inc(1, observability.Label{Key: "result", Value: "won"})
		defer func() {
			if rec := recover(); rec != nil {
				r.log.Error("async end action panicked", observability.String("panic", fmt.Sprint(rec)))
			}
		}()
		if end != nil {
			end(ctx, o)
		}
	}
}

func isNil(handle any) bool {
	if handle == nil {
		return true
	}
	v := reflect.ValueOf(handle)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return v.IsNil()
	}
	return false
}
