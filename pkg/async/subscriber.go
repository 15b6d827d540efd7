package async

import "context"

// Subscriber receives the signals of one subscription. OnNext may be called
// any number of times, followed by at most one of OnError or OnComplete.
// Every signal carries the context the subscriber should run under.
type Subscriber[T any] interface {
	OnSubscribe(ctx context.Context, s Subscription)
	OnNext(ctx context.Context, v T)
	OnError(ctx context.Context, err error)
	OnComplete(ctx context.Context)
}

type Subscription interface {
	Cancel()
}

// Funcs adapts plain functions to a Subscriber. Nil fields are ignored.
type Funcs[T any] struct {
	Subscribe func(ctx context.Context, s Subscription)
	Next      func(ctx context.Context, v T)
	Error     func(ctx context.Context, err error)
	Complete  func(ctx context.Context)
}

func (f Funcs[T]) OnSubscribe(ctx context.Context, s Subscription) {
	if f.Subscribe != nil {
		f.Subscribe(ctx, s)
	}
}

func (f Funcs[T]) OnNext(ctx context.Context, v T) {
	if f.Next != nil {
		f.Next(ctx, v)
	}
}

func (f Funcs[T]) OnError(ctx context.Context, err error) {
	if f.Error != nil {
		f.Error(ctx, err)
	}
}

func (f Funcs[T]) OnComplete(ctx context.Context) {
	if f.Complete != nil {
		f.Complete(ctx)
	}
}
