package async

import (
	"context"
	"sync"
)

type result[T any] struct {
	value   T
	present bool
	err     error
}

type promise[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	result    result[T]
	callbacks []func(result[T])
}

func newPromise[T any]() *promise[T] {
	return &promise[T]{done: make(chan struct{})}
}

func (p *promise[T]) resolve(r result[T]) bool {
	p.mu.Lock()
	if p.resolved {
		p.mu.Unlock()
		return false
	}
	p.resolved = true
	p.result = r
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, cb := range callbacks {
		cb(r)
	}
	return true
}

// subscribe runs cb on the resolving goroutine, or right away on the caller's
// goroutine when the promise is already resolved.
func (p *promise[T]) subscribe(cb func(result[T])) {
	p.mu.Lock()
	if !p.resolved {
		p.callbacks = append(p.callbacks, cb)
		p.mu.Unlock()
		return
	}
	r := p.result
	p.mu.Unlock()
	cb(r)
}

func (p *promise[T]) await(ctx context.Context) (result[T], error) {
	select {
	case <-p.done:
		return p.result, nil
	case <-ctx.Done():
		return result[T]{}, ctx.Err()
	}
}

func (p *promise[T]) isDone() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
