package async

import "context"

// Maybe is a future that may complete without a value.
type Maybe[T any] struct {
	p *promise[T]
}

func NewMaybe[T any]() *Maybe[T] {
	return &Maybe[T]{p: newPromise[T]()}
}

func (m *Maybe[T]) Complete(v T) bool {
	return m.p.resolve(result[T]{value: v, present: true})
}

// Empty resolves the maybe without a value.
func (m *Maybe[T]) Empty() bool {
	return m.p.resolve(result[T]{})
}

func (m *Maybe[T]) Fail(err error) bool {
	if err == nil {
		return m.Empty()
	}
	return m.p.resolve(result[T]{err: err})
}

func (m *Maybe[T]) Cancel() bool {
	return m.p.resolve(result[T]{err: ErrCanceled})
}

func (m *Maybe[T]) Done() <-chan struct{} {
	return m.p.done
}

func (m *Maybe[T]) OnComplete(fn func(v T, ok bool, err error)) {
	m.p.subscribe(func(r result[T]) {
		fn(r.value, r.present, r.err)
	})
}

// ObserveMaybe is OnComplete with the value type erased.
func (m *Maybe[T]) ObserveMaybe(fn func(v any, ok bool, err error)) {
	m.p.subscribe(func(r result[T]) {
		if !r.present {
			fn(nil, false, r.err)
			return
		}
		fn(r.value, true, nil)
	})
}

func (m *Maybe[T]) Await(ctx context.Context) (T, bool, error) {
	r, err := m.p.await(ctx)
	if err != nil {
		return r.value, false, err
	}
	return r.value, r.present, r.err
}
