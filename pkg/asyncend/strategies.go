package asyncend

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/jt828/go-trace-propagation/pkg/async"
)

type futureHandle interface {
	ObserveAny(fn func(v any, err error))
}

type maybeHandle interface {
	ObserveMaybe(fn func(v any, ok bool, err error))
}

type streamHandle interface {
	HookAny(sig *async.Signals) any
}

type parallelHandle interface {
	HookRails(sig *async.Signals) any
}

// FutureStrategy handles *async.Future values.
type FutureStrategy struct{}

func (FutureStrategy) Name() string { return "future" }

func (FutureStrategy) Supports(handle any) bool {
	_, ok := handle.(futureHandle)
	return ok
}

func (FutureStrategy) Instrument(_ context.Context, handle any, c *Completion) any {
	handle.(futureHandle).ObserveAny(func(v any, err error) {
		if err != nil {
			c.Fail(err)
			return
		}
		c.Succeed(v)
	})
	return handle
}

// MaybeStrategy handles *async.Maybe values.
type MaybeStrategy struct{}

func (MaybeStrategy) Name() string { return "maybe" }

func (MaybeStrategy) Supports(handle any) bool {
	_, ok := handle.(maybeHandle)
	return ok
}

func (MaybeStrategy) Instrument(_ context.Context, handle any, c *Completion) any {
	handle.(maybeHandle).ObserveMaybe(func(v any, _ bool, err error) {
		if err != nil {
			c.Fail(err)
			return
		}
		c.Succeed(v)
	})
	return handle
}

// StreamStrategy handles *async.Stream values. The stream may be subscribed
// any number of times; whichever subscriber terminates first ends the span.
type StreamStrategy struct{}

func (StreamStrategy) Name() string { return "stream" }

func (StreamStrategy) Supports(handle any) bool {
	_, ok := handle.(streamHandle)
	return ok
}

func (StreamStrategy) Instrument(ctx context.Context, handle any, c *Completion) any {
	return handle.(streamHandle).HookAny(signalsFor(ctx, c))
}

// ParallelStrategy handles *async.Parallel values. All rails share one
// Completion.
type ParallelStrategy struct{}

func (ParallelStrategy) Name() string { return "parallel" }

func (ParallelStrategy) Supports(handle any) bool {
	_, ok := handle.(parallelHandle)
	return ok
}

func (ParallelStrategy) Instrument(ctx context.Context, handle any, c *Completion) any {
	return handle.(parallelHandle).HookRails(signalsFor(ctx, c))
}

func signalsFor(ctx context.Context, c *Completion) *async.Signals {
	var elements atomic.Int64
	return &async.Signals{
		Context: ctx,
		OnNext:  func() { elements.Add(1) },
		OnError: func(err error) {
			c.Finish(Outcome{Err: err, Elements: elements.Load()})
		},
		OnComplete: func() {
			c.Finish(Outcome{Elements: elements.Load()})
		},
		OnCancel: func() {
			c.Finish(Outcome{Canceled: true, Elements: elements.Load()})
		},
	}
}

// ChannelStrategy handles receive-capable channels of any element type. The
// returned channel forwards every element in order. The end-action runs as
// soon as the source channel is closed, whether or not the consumer has
// drained the returned channel yet; elements the consumer has not taken are
// held by the forwarder, which exits once they are delivered and the
// returned channel is closed.
type ChannelStrategy struct{}

func (ChannelStrategy) Name() string { return "channel" }

func (ChannelStrategy) Supports(handle any) bool {
	t := reflect.TypeOf(handle)
	return t != nil && t.Kind() == reflect.Chan && t.ChanDir()&reflect.RecvDir != 0
}

func (ChannelStrategy) Instrument(_ context.Context, handle any, c *Completion) any {
	src := reflect.ValueOf(handle)
	out := reflect.MakeChan(reflect.ChanOf(reflect.BothDir, src.Type().Elem()), src.Cap())

	go forward(src, out, c)

	return out.Convert(src.Type()).Interface()
}

func forward(src, out reflect.Value, c *Completion) {
	var (
		n       int64
		pending []reflect.Value
	)
	for {
		cases := []reflect.SelectCase{{Dir: reflect.SelectRecv, Chan: src}}
		if len(pending) > 0 {
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectSend, Chan: out, Send: pending[0]})
		}
		chosen, v, ok := reflect.Select(cases)
		if chosen == 1 {
			pending[0] = reflect.Value{}
			pending = pending[1:]
			continue
		}
		if !ok {
			break
		}
		n++
		pending = append(pending, v)
	}

	c.Finish(Outcome{Elements: n})
	for _, v := range pending {
		out.Send(v)
	}
	out.Close()
}
