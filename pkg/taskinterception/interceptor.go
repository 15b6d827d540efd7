package taskinterception

import (
	"context"

	contextcellImpl "github.com/jt828/go-trace-propagation/pkg/contextcell/implementation"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
	"github.com/jt828/go-trace-propagation/pkg/scope"
)

type submitDepthKey struct{}

type Interceptor struct {
	cfg    *Config
	log    observability.Logger
	events observability.Counter
}

func NewInterceptor(opts ...Option) *Interceptor {
	cfg := ApplyOptions(opts...)
	if cfg.Logger == nil {
		cfg.Logger = obsImpl.NewNopLogger()
	}
	if cfg.Meter == nil {
		cfg.Meter = observability.NopMeter()
	}
	if cfg.Cell == nil {
		cfg.Cell = contextcellImpl.NewWeakCell[Task, *PropagatedState]()
	}
	return &Interceptor{
		cfg: cfg,
		log: cfg.Logger,
		events: cfg.Meter.Counter("taskinterception_events_total", observability.MetricOpt{
			Help:      "Task interception events by kind.",
			LabelKeys: []string{"event"},
		}),
	}
}

func (i *Interceptor) Config() *Config {
	return i.cfg
}

// OnSubmit captures the lane's current context for r. The returned Runnable
// must be the one handed to the worker: its identity keys the captured state.
// Submissions made while an outer OnSubmit is running on the same lane are
// returned untouched. local belongs to the calling goroutine; concurrent
// submitters each bring their own lane, typically via scope.NewLocal(ctx).
func (i *Interceptor) OnSubmit(local *scope.Local, r Runnable) Runnable {
	if r == nil {
		return nil
	}
	if t, ok := r.(*Task); ok {
		return t
	}

	depth := local.Depth(submitDepthKey{})
	defer depth.Exit()
	if !depth.Enter() {
		return r
	}

	kind := TypeName(r)
	if !i.cfg.Allows(kind) {
		return r
	}

	t := &Task{delegate: r, kind: kind}
	i.cfg.Cell.Attach(t, NewPropagatedState(local.Current()))
	i.events.Inc(1, observability.Label{Key: "event", Value: "attached"})
	return t
}

// OnExecuteStart activates the captured context on the worker's lane. It
// returns nil when r carries nothing to activate.
func (i *Interceptor) OnExecuteStart(local *scope.Local, r Runnable) *scope.Guard {
	t, ok := r.(*Task)
	if !ok {
		return nil
	}
	st, ok := i.cfg.Cell.Get(t)
	if !ok {
		i.events.Inc(1, observability.Label{Key: "event", Value: "missing"})
		return nil
	}
	ctx, ok := st.Consume()
	if !ok {
		i.events.Inc(1, observability.Label{Key: "event", Value: "consumed"})
		return nil
	}
	i.events.Inc(1, observability.Label{Key: "event", Value: "activated"})
	return local.Activate(ctx)
}

// OnExecuteEnd restores the worker lane and drops the entry for r. It must
// run on every exit path of the task, including panics.
func (i *Interceptor) OnExecuteEnd(g *scope.Guard, r Runnable, err error) {
	g.Close()
	if t, ok := r.(*Task); ok {
		i.cfg.Cell.Remove(t)
	}
	if err != nil {
		i.log.Debug("intercepted task failed",
			observability.String("task", TypeName(r)),
			observability.Err(err))
	}
}

// OnCancel drops the entry of a task that will never run.
func (i *Interceptor) OnCancel(r Runnable) {
	t, ok := r.(*Task)
	if !ok {
		return
	}
	if i.cfg.Cell.HasAttachment(t) {
		i.events.Inc(1, observability.Label{Key: "event", Value: "canceled"})
	}
	i.cfg.Cell.Remove(t)
}

// Attachment returns the context captured for r, if any is still stored.
func (i *Interceptor) Attachment(r Runnable) (context.Context, bool) {
	t, ok := r.(*Task)
	if !ok {
		return nil, false
	}
	st, ok := i.cfg.Cell.Get(t)
	if !ok {
		return nil, false
	}
	return st.Context(), true
}

// Execute runs r on local between OnExecuteStart and OnExecuteEnd.
func (i *Interceptor) Execute(local *scope.Local, r Runnable) (err error) {
	g := i.OnExecuteStart(local, r)
	defer func() {
		i.OnExecuteEnd(g, r, err)
	}()
	return r.Run(local.Current())
}
