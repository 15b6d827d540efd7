// Package instrumenter is the entry point integrations call into. It starts
// spans for units of work and hands their ending to the async-end registry,
// carries contexts across executor submissions, and parents tree nodes by
// path.
package instrumenter

import (
	"context"
	"errors"
	"fmt"

	"github.com/jt828/go-trace-propagation/pkg/asyncend"
	"github.com/jt828/go-trace-propagation/pkg/latch"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
	"github.com/jt828/go-trace-propagation/pkg/pathctx"
	"github.com/jt828/go-trace-propagation/pkg/scope"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
)

const (
	AttrCanceled = "async.canceled"
	AttrElements = "async.elements"
)

// ErrUnitExited ends a unit whose goroutine exited before fn returned.
var ErrUnitExited = errors.New("instrumenter: unit exited without returning")

// End ends a unit of work. Only the first call has an effect, it reports
// whether it was that call.
type End func(o asyncend.Outcome) bool

type Instrumenter struct {
	tracer       observability.Tracer
	registry     *asyncend.Registry
	tasks        *taskinterception.Interceptor
	log          observability.Logger
	experimental bool
}

type Option func(*Instrumenter)

func WithRegistry(r *asyncend.Registry) Option {
	return func(i *Instrumenter) {
		i.registry = r
	}
}

func WithInterceptor(icpt *taskinterception.Interceptor) Option {
	return func(i *Instrumenter) {
		i.tasks = icpt
	}
}

func WithLogger(log observability.Logger) Option {
	return func(i *Instrumenter) {
		i.log = log
	}
}

// WithExperimentalAttributes also records how many elements a stream emitted
// before it terminated.
func WithExperimentalAttributes(enabled bool) Option {
	return func(i *Instrumenter) {
		i.experimental = enabled
	}
}

func New(tracer observability.Tracer, opts ...Option) *Instrumenter {
	i := &Instrumenter{tracer: tracer}
	for _, opt := range opts {
		opt(i)
	}
	if i.log == nil {
		i.log = obsImpl.NewNopLogger()
	}
	if i.registry == nil {
		i.registry = asyncend.NewDefaultRegistry(asyncend.WithLogger(i.log))
	}
	if i.tasks == nil {
		i.tasks = taskinterception.NewInterceptor(taskinterception.WithLogger(i.log))
	}
	return i
}

func (i *Instrumenter) Registry() *asyncend.Registry {
	return i.registry
}

func (i *Instrumenter) OnSubmit(local *scope.Local, r taskinterception.Runnable) taskinterception.Runnable {
	return i.tasks.OnSubmit(local, r)
}

func (i *Instrumenter) OnExecuteStart(local *scope.Local, r taskinterception.Runnable) *scope.Guard {
	return i.tasks.OnExecuteStart(local, r)
}

func (i *Instrumenter) OnExecuteEnd(g *scope.Guard, r taskinterception.Runnable, err error) {
	i.tasks.OnExecuteEnd(g, r, err)
}

func (i *Instrumenter) OnCancel(r taskinterception.Runnable) {
	i.tasks.OnCancel(r)
}

// StartUnit starts a span named name under ctx.
func (i *Instrumenter) StartUnit(ctx context.Context, name string) (context.Context, End) {
	ctx, span := i.tracer.Start(ctx, name)
	t := latch.NewTerminal(func(o asyncend.Outcome) {
		i.endSpan(span, o)
	})
	return ctx, t.Fire
}

// OnAsyncReturn starts a span for an operation that returned handle and ends
// it when handle terminates. The returned value must be used in place of
// handle. Handles of unknown shape end the span immediately.
func (i *Instrumenter) OnAsyncReturn(ctx context.Context, name string, handle any) any {
	ctx, span := i.tracer.Start(ctx, name)
	return i.registry.Instrument(ctx, handle, func(_ context.Context, o asyncend.Outcome) {
		i.endSpan(span, o)
	})
}

// Instrument runs fn under a new span and keeps the span open until the
// handle fn returns terminates. An error from fn ends the span right away.
// A panic in fn ends the span and is re-raised. fn calling runtime.Goexit
// ends the span with ErrUnitExited and lets the goroutine exit.
func (i *Instrumenter) Instrument(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	ctx, end := i.StartUnit(ctx, name)

	completed := false
	defer func() {
		if completed {
			return
		}
		// recover returns nil only for Goexit; panic(nil) arrives as *runtime.PanicNilError.
		v := recover()
		if v == nil {
			end(asyncend.Outcome{Err: ErrUnitExited, Elements: -1})
			return
		}
		end(asyncend.Outcome{Err: fmt.Errorf("panic: %v", v), Elements: -1})
		panic(v)
	}()

	handle, err := fn(ctx)
	completed = true
	if err != nil {
		end(asyncend.Outcome{Err: err, Elements: -1})
		return handle, err
	}
	return i.registry.Instrument(ctx, handle, func(_ context.Context, o asyncend.Outcome) {
		end(o)
	}), nil
}

// OnTreeNodeEnter starts the span of the node at path, parented on the
// nearest registered ancestor.
func (i *Instrumenter) OnTreeNodeEnter(exec *pathctx.Execution, path pathctx.Path) (context.Context, *pathctx.Node) {
	return exec.Enter(path)
}

func (i *Instrumenter) OnTreeNodeExit(node *pathctx.Node, err error) {
	if node == nil {
		return
	}
	node.End(err)
}

// NewExecution begins a tree execution rooted at ctx.
func (i *Instrumenter) NewExecution(ctx context.Context) *pathctx.Execution {
	exec := pathctx.NewExecution(i.tracer, pathctx.NewStore(pathctx.WithAmbient(func() context.Context {
		return ctx
	})))
	exec.Begin(ctx)
	return exec
}

func (i *Instrumenter) endSpan(span observability.Span, o asyncend.Outcome) {
	switch {
	case o.Canceled:
		span.SetAttribute(AttrCanceled, true)
	case o.Err != nil:
		span.RecordError(o.Err)
	}
	if i.experimental && o.Elements >= 0 {
		span.SetAttribute(AttrElements, o.Elements)
	}
	span.End()
}
