// Package scope tracks which context.Context is current on an execution lane.
//
// Go has no thread-local storage, so a lane is explicit: a *Local is owned by
// exactly one goroutine at a time (an executor worker, a request goroutine)
// and is not safe for concurrent use. Activating a context pushes it, closing
// the returned Guard pops it again.
package scope

import (
	"context"

	"github.com/jt828/go-trace-propagation/pkg/observability"
	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
)

type Local struct {
	root   context.Context
	stack  []*Guard
	depths map[any]*CallDepth
	log    observability.Logger
}

type Option func(*Local)

func WithLogger(log observability.Logger) Option {
	return func(l *Local) {
		l.log = log
	}
}

// NewLocal creates a lane whose current context is root until something is
// activated on it. A nil root means context.Background.
func NewLocal(root context.Context, opts ...Option) *Local {
	if root == nil {
		root = context.Background()
	}
	l := &Local{root: root}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = obsImpl.NewNopLogger()
	}
	return l
}

func (l *Local) Current() context.Context {
	if n := len(l.stack); n > 0 {
		return l.stack[n-1].ctx
	}
	return l.root
}

// Activate makes ctx current until the returned guard is closed.
func (l *Local) Activate(ctx context.Context) *Guard {
	if ctx == nil {
		ctx = l.Current()
	}
	g := &Guard{local: l, ctx: ctx, prev: l.Current(), state: guardOpen}
	l.stack = append(l.stack, g)
	return g
}

// Run activates ctx, runs fn with it and restores the previous context on
// every exit path. A panic in fn is re-raised after the guard is closed.
func (l *Local) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	g := l.Activate(ctx)
	defer g.Close()
	return fn(g.ctx)
}

// Open reports how many guards are currently open on the lane.
func (l *Local) Open() int {
	return len(l.stack)
}

// Depth returns the reentrancy counter registered under key, creating it on
// first use.
func (l *Local) Depth(key any) *CallDepth {
	if l.depths == nil {
		l.depths = make(map[any]*CallDepth)
	}
	d, ok := l.depths[key]
	if !ok {
		d = &CallDepth{}
		l.depths[key] = d
	}
	return d
}

func (l *Local) indexOf(g *Guard) int {
	for i := len(l.stack) - 1; i >= 0; i-- {
		if l.stack[i] == g {
			return i
		}
	}
	return -1
}

func (l *Local) close(g *Guard) {
	if g.state == guardClosed {
		l.log.Warn("scope guard closed twice")
		return
	}
	g.state = guardClosed

	i := l.indexOf(g)
	switch {
	case i < 0:
		l.log.Error("scope guard closed on a lane it does not belong to")
		return
	case i != len(l.stack)-1:
		l.log.Warn("scope guard closed out of order",
			observability.Int("depth", i),
			observability.Int("open", len(l.stack)),
			observability.Int("skipped", len(l.stack)-1-i))
		for _, inner := range l.stack[i+1:] {
			inner.state = guardClosed
		}
	}

	for j := i; j < len(l.stack); j++ {
		l.stack[j] = nil
	}
	l.stack = l.stack[:i]
}
