package async

import (
	"context"
	"slices"
)

// Stream is a cold publisher: every Subscribe runs the producer again for
// that subscriber, on the subscribing goroutine.
type Stream[T any] struct {
	produce func(ctx context.Context, e *Emitter[T])
	signals []*Signals
}

func NewStream[T any](produce func(ctx context.Context, e *Emitter[T])) *Stream[T] {
	return &Stream[T]{produce: produce}
}

// Just emits values in order and completes.
func Just[T any](values ...T) *Stream[T] {
	return NewStream(func(ctx context.Context, e *Emitter[T]) {
		for _, v := range values {
			if !e.Next(v) {
				return
			}
		}
		e.Complete()
	})
}

// Error fails every subscriber with err.
func Error[T any](err error) *Stream[T] {
	return NewStream(func(ctx context.Context, e *Emitter[T]) {
		e.Error(err)
	})
}

// Map transforms every element of s with fn.
func Map[T, R any](s *Stream[T], fn func(T) R) *Stream[R] {
	return NewStream(func(ctx context.Context, e *Emitter[R]) {
		s.Subscribe(ctx, Funcs[T]{
			Subscribe: func(_ context.Context, sub Subscription) { e.OnCancel(sub.Cancel) },
			Next:      func(_ context.Context, v T) { e.Next(fn(v)) },
			Error:     func(_ context.Context, err error) { e.Error(err) },
			Complete:  func(context.Context) { e.Complete() },
		})
	})
}

// Hooked returns a stream that reports the signals of every subscription to
// sig. Hooking the same Signals twice is a no-op.
func (s *Stream[T]) Hooked(sig *Signals) *Stream[T] {
	if slices.Contains(s.signals, sig) {
		return s
	}
	return &Stream[T]{produce: s.produce, signals: append(slices.Clone(s.signals), sig)}
}

// HookAny is Hooked with the element type erased.
func (s *Stream[T]) HookAny(sig *Signals) any {
	return s.Hooked(sig)
}

func (s *Stream[T]) Subscribe(ctx context.Context, sub Subscriber[T]) {
	for _, sig := range s.signals {
		sub = wrapSignals(sub, sig)
	}
	if n := len(s.signals); n > 0 && s.signals[n-1].Context != nil {
		ctx = s.signals[n-1].Context
	}

	e := newEmitter(ctx, sub)
	sub.OnSubscribe(ctx, e)
	if e.IsCanceled() {
		return
	}
	s.produce(ctx, e)
}

// Collect subscribes and gathers every element until the stream terminates.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var (
		out []T
		err error
	)
	s.Subscribe(ctx, Funcs[T]{
		Next:  func(_ context.Context, v T) { out = append(out, v) },
		Error: func(_ context.Context, e error) { err = e },
	})
	return out, err
}
