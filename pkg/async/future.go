package async

import (
	"context"
	"errors"
)

// Future is a single value that becomes available later. The zero value is
// not usable, create futures with NewFuture.
type Future[T any] struct {
	p *promise[T]
}

func NewFuture[T any]() *Future[T] {
	return &Future[T]{p: newPromise[T]()}
}

func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v)
	return f
}

func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	f.Fail(err)
	return f
}

// Complete resolves the future with v. Only the first resolution counts.
func (f *Future[T]) Complete(v T) bool {
	return f.p.resolve(result[T]{value: v, present: true})
}

// Fail resolves the future with err. A nil err completes it with the zero
// value.
func (f *Future[T]) Fail(err error) bool {
	if err == nil {
		var zero T
		return f.Complete(zero)
	}
	return f.p.resolve(result[T]{err: err})
}

func (f *Future[T]) Cancel() bool {
	return f.p.resolve(result[T]{err: ErrCanceled})
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.p.done
}

func (f *Future[T]) IsDone() bool {
	return f.p.isDone()
}

func (f *Future[T]) IsCanceled() bool {
	if !f.p.isDone() {
		return false
	}
	return errors.Is(f.p.result.err, ErrCanceled)
}

// OnComplete registers fn to run once the future resolves. A canceled
// future reports ErrCanceled.
func (f *Future[T]) OnComplete(fn func(v T, err error)) {
	f.p.subscribe(func(r result[T]) {
		fn(r.value, r.err)
	})
}

// ObserveAny is OnComplete with the value type erased.
func (f *Future[T]) ObserveAny(fn func(v any, err error)) {
	f.p.subscribe(func(r result[T]) {
		if r.err != nil {
			fn(nil, r.err)
			return
		}
		fn(r.value, nil)
	})
}

func (f *Future[T]) Await(ctx context.Context) (T, error) {
	r, err := f.p.await(ctx)
	if err != nil {
		return r.value, err
	}
	return r.value, r.err
}
