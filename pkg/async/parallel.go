package async

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

const railBuffer = 16

// Parallel fans the elements of a source stream out over a fixed number of
// rails. Each rail has its own subscriber running on its own goroutine and
// receives its own terminal signal.
type Parallel[T any] struct {
	source  *Stream[T]
	rails   int
	signals []*Signals
}

func NewParallel[T any](source *Stream[T], rails int) *Parallel[T] {
	if rails < 1 {
		rails = 1
	}
	return &Parallel[T]{source: source, rails: rails}
}

func (p *Parallel[T]) Rails() int {
	return p.rails
}

// Hooked returns a parallel stream reporting every rail's signals to sig.
func (p *Parallel[T]) Hooked(sig *Signals) *Parallel[T] {
	if slices.Contains(p.signals, sig) {
		return p
	}
	return &Parallel[T]{source: p.source, rails: p.rails, signals: append(slices.Clone(p.signals), sig)}
}

// HookRails is Hooked with the element type erased.
func (p *Parallel[T]) HookRails(sig *Signals) any {
	return p.Hooked(sig)
}

// Subscribe runs the source once and blocks until every rail terminated.
// Elements are distributed round robin.
func (p *Parallel[T]) Subscribe(ctx context.Context, subs ...Subscriber[T]) error {
	if len(subs) != p.rails {
		return fmt.Errorf("%w: want %d, got %d", ErrRailMismatch, p.rails, len(subs))
	}
	if n := len(p.signals); n > 0 && p.signals[n-1].Context != nil {
		ctx = p.signals[n-1].Context
	}

	f := &fanOut[T]{rails: make([]*rail[T], p.rails)}
	f.live.Store(int32(p.rails))
	for i, sub := range subs {
		for _, sig := range p.signals {
			sub = wrapSignals(sub, sig)
		}
		f.rails[i] = &rail[T]{sub: sub, ch: make(chan T, railBuffer), fan: f}
	}

	var wg sync.WaitGroup
	for _, r := range f.rails {
		wg.Add(1)
		go func(r *rail[T]) {
			defer wg.Done()
			r.run(ctx)
		}(r)
	}

	p.source.Subscribe(ctx, f)
	// the source runs on this goroutine, nothing is sent after it returns
	f.close()
	wg.Wait()
	return nil
}

type fanOut[T any] struct {
	rails  []*rail[T]
	next   int
	err    error
	live   atomic.Int32
	closed sync.Once

	mu       sync.Mutex
	upstream Subscription
}

func (f *fanOut[T]) OnSubscribe(_ context.Context, s Subscription) {
	f.mu.Lock()
	f.upstream = s
	f.mu.Unlock()
	if f.live.Load() == 0 {
		s.Cancel()
	}
}

func (f *fanOut[T]) OnNext(_ context.Context, v T) {
	f.rails[f.next%len(f.rails)].ch <- v
	f.next++
}

func (f *fanOut[T]) OnError(_ context.Context, err error) {
	f.err = err
	f.close()
}

func (f *fanOut[T]) OnComplete(context.Context) {
	f.close()
}

func (f *fanOut[T]) close() {
	f.closed.Do(func() {
		for _, r := range f.rails {
			close(r.ch)
		}
	})
}

// railCanceled cancels the source once no rail is interested any more.
// Canceled rails keep draining their channel so the source never blocks.
func (f *fanOut[T]) railCanceled() {
	if f.live.Add(-1) != 0 {
		return
	}
	f.mu.Lock()
	up := f.upstream
	f.mu.Unlock()
	if up != nil {
		up.Cancel()
	}
}

type rail[T any] struct {
	sub      Subscriber[T]
	ch       chan T
	fan      *fanOut[T]
	canceled atomic.Bool
}

func (r *rail[T]) Cancel() {
	if r.canceled.CompareAndSwap(false, true) {
		r.fan.railCanceled()
	}
}

func (r *rail[T]) run(ctx context.Context) {
	r.sub.OnSubscribe(ctx, r)
	for v := range r.ch {
		if r.canceled.Load() {
			continue
		}
		r.sub.OnNext(ctx, v)
	}
	if r.canceled.Load() {
		return
	}
	if r.fan.err != nil {
		r.sub.OnError(ctx, r.fan.err)
		return
	}
	r.sub.OnComplete(ctx)
}
