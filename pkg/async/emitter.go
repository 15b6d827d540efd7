package async

import (
	"context"
	"sync"
	"sync/atomic"
)

// Emitter is the producer side of one subscription. It drops signals after
// the subscription terminated or was canceled.
type Emitter[T any] struct {
	ctx        context.Context
	sub        Subscriber[T]
	terminated atomic.Bool
	canceled   atomic.Bool

	mu       sync.Mutex
	cancelCh chan struct{}
	upstream []func()
}

func newEmitter[T any](ctx context.Context, sub Subscriber[T]) *Emitter[T] {
	return &Emitter[T]{ctx: ctx, sub: sub, cancelCh: make(chan struct{})}
}

func (e *Emitter[T]) Context() context.Context {
	return e.ctx
}

// Next delivers v and reports whether the producer should keep going.
func (e *Emitter[T]) Next(v T) bool {
	if e.terminated.Load() || e.canceled.Load() {
		return false
	}
	e.sub.OnNext(e.ctx, v)
	return !e.canceled.Load()
}

func (e *Emitter[T]) Error(err error) {
	if e.canceled.Load() || !e.terminated.CompareAndSwap(false, true) {
		return
	}
	e.sub.OnError(e.ctx, err)
}

func (e *Emitter[T]) Complete() {
	if e.canceled.Load() || !e.terminated.CompareAndSwap(false, true) {
		return
	}
	e.sub.OnComplete(e.ctx)
}

// Canceled is closed once the subscriber cancels.
func (e *Emitter[T]) Canceled() <-chan struct{} {
	return e.cancelCh
}

func (e *Emitter[T]) IsCanceled() bool {
	return e.canceled.Load()
}

// OnCancel registers fn to run when the subscriber cancels, or immediately
// if it already did.
func (e *Emitter[T]) OnCancel(fn func()) {
	e.mu.Lock()
	if !e.canceled.Load() {
		e.upstream = append(e.upstream, fn)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()
	fn()
}

// Cancel implements Subscription.
func (e *Emitter[T]) Cancel() {
	e.mu.Lock()
	if !e.canceled.CompareAndSwap(false, true) {
		e.mu.Unlock()
		return
	}
	close(e.cancelCh)
	upstream := e.upstream
	e.upstream = nil
	e.mu.Unlock()

	for _, fn := range upstream {
		fn()
	}
}
