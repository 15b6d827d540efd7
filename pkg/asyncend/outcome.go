package asyncend

import (
	"context"
	"errors"

	"github.com/jt828/go-trace-propagation/pkg/async"
	"github.com/jt828/go-trace-propagation/pkg/latch"
)

// Outcome is what the winning terminal signal reports. Elements is the
// number of elements observed before termination, or -1 for shapes that do
// not emit elements.
type Outcome struct {
	Value    any
	Err      error
	Canceled bool
	Elements int64
}

// EndFunc is the end-action. It runs exactly once per instrumented handle,
// with ctx being the context captured when the handle was instrumented.
type EndFunc func(ctx context.Context, o Outcome)

// Completion routes every terminal signal of one handle through a single
// latch. Strategies call it from any number of goroutines; only the first
// call reaches the end-action.
type Completion struct {
	terminal *latch.Terminal[Outcome]
	onLost   func()
}

func newCompletion(action func(Outcome), onLost func()) *Completion {
	return &Completion{terminal: latch.NewTerminal(action), onLost: onLost}
}

func (c *Completion) Finish(o Outcome) bool {
	if c.terminal.Fire(o) {
		return true
	}
	if c.onLost != nil {
		c.onLost()
	}
	return false
}

func (c *Completion) Succeed(value any) bool {
	return c.Finish(Outcome{Value: value, Elements: -1})
}

// Fail treats async.ErrCanceled as a cancellation.
func (c *Completion) Fail(err error) bool {
	if errors.Is(err, async.ErrCanceled) {
		return c.Cancel()
	}
	return c.Finish(Outcome{Err: err, Elements: -1})
}

func (c *Completion) Cancel() bool {
	return c.Finish(Outcome{Canceled: true, Elements: -1})
}

func (c *Completion) Done() bool {
	return c.terminal.Fired()
}
