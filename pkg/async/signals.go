package async

import "context"

// Signals observes every subscription made through a hooked stream. Context,
// when set, replaces the context delivered to downstream subscribers. The
// callbacks fire for every subscriber; deduplicating terminal signals is the
// caller's job.
type Signals struct {
	Context    context.Context
	OnNext     func()
	OnError    func(err error)
	OnComplete func()
	OnCancel   func()
}

type signalSubscriber[T any] struct {
	down Subscriber[T]
	sig  *Signals
}

// wrapSignals returns sub unchanged when it already carries sig.
func wrapSignals[T any](sub Subscriber[T], sig *Signals) Subscriber[T] {
	if sw, ok := sub.(*signalSubscriber[T]); ok && sw.sig == sig {
		return sub
	}
	return &signalSubscriber[T]{down: sub, sig: sig}
}

// Propagating makes every signal delivered to sub carry ctx. A subscriber
// that is already propagating a context is returned as is.
func Propagating[T any](sub Subscriber[T], ctx context.Context) Subscriber[T] {
	if sw, ok := sub.(*signalSubscriber[T]); ok && sw.sig.Context != nil {
		return sub
	}
	return &signalSubscriber[T]{down: sub, sig: &Signals{Context: ctx}}
}

func (s *signalSubscriber[T]) ctx(ctx context.Context) context.Context {
	if s.sig.Context != nil {
		return s.sig.Context
	}
	return ctx
}

func (s *signalSubscriber[T]) OnSubscribe(ctx context.Context, sub Subscription) {
	s.down.OnSubscribe(s.ctx(ctx), &signalSubscription{up: sub, sig: s.sig})
}

func (s *signalSubscriber[T]) OnNext(ctx context.Context, v T) {
	if s.sig.OnNext != nil {
		s.sig.OnNext()
	}
	s.down.OnNext(s.ctx(ctx), v)
}

func (s *signalSubscriber[T]) OnError(ctx context.Context, err error) {
	if s.sig.OnError != nil {
		defer s.sig.OnError(err)
	}
	s.down.OnError(s.ctx(ctx), err)
}

func (s *signalSubscriber[T]) OnComplete(ctx context.Context) {
	if s.sig.OnComplete != nil {
		defer s.sig.OnComplete()
	}
	s.down.OnComplete(s.ctx(ctx))
}

type signalSubscription struct {
	up  Subscription
	sig *Signals
}

func (s *signalSubscription) Cancel() {
	if s.sig.OnCancel != nil {
		s.sig.OnCancel()
	}
	s.up.Cancel()
}
