package implementation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/jt828/go-trace-propagation/pkg/async"
	"github.com/jt828/go-trace-propagation/pkg/circuitbreaker"
	"github.com/jt828/go-trace-propagation/pkg/executor"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
	retryImpl "github.com/jt828/go-trace-propagation/pkg/retry/implementation"
	"github.com/jt828/go-trace-propagation/pkg/scope"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
)

type job struct {
	task   taskinterception.Runnable
	future *async.Future[struct{}]
	id     int64
}

type workerPool struct {
	cfg  *executor.Config
	log  observability.Logger
	icpt *taskinterception.Interceptor

	mu     sync.RWMutex
	closed bool
	jobs   chan *job
	wg     sync.WaitGroup

	submitted observability.Counter
	finished  observability.Counter
	queued    observability.Gauge
	duration  observability.Timer
}

// NewWorkerPool starts the workers immediately. Every worker owns one
// scope.Local, the lane tasks are activated on.
func NewWorkerPool(opts ...executor.Option) executor.Executor {
	cfg := executor.ApplyOptions(opts...)
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Logger == nil {
		cfg.Logger = obsImpl.NewNopLogger()
	}
	if cfg.Meter == nil {
		cfg.Meter = observability.NopMeter()
	}
	if cfg.Retry == nil {
		cfg.Retry = retryImpl.NewNoRetry()
	}
	if cfg.Interceptor == nil {
		cfg.Interceptor = taskinterception.NewInterceptor(
			taskinterception.WithLogger(cfg.Logger),
			taskinterception.WithMeter(cfg.Meter),
		)
	}

	p := &workerPool{
		cfg:  cfg,
		log:  cfg.Logger.With(observability.String("executor", cfg.Name)),
		icpt: cfg.Interceptor,
		jobs: make(chan *job, cfg.QueueSize),
		submitted: cfg.Meter.Counter("executor_tasks_submitted_total", observability.MetricOpt{
			Help:      "Tasks accepted into the executor queue.",
			LabelKeys: []string{"executor"},
		}),
		finished: cfg.Meter.Counter("executor_tasks_finished_total", observability.MetricOpt{
			Help:      "Tasks that reached a terminal state, by result.",
			LabelKeys: []string{"executor", "result"},
		}),
		queued: cfg.Meter.Gauge("executor_queue_depth", observability.MetricOpt{
			Help:      "Tasks waiting for a worker.",
			LabelKeys: []string{"executor"},
		}),
		duration: cfg.Meter.Timer("executor_task_duration_seconds", observability.MetricOpt{
			Help:      "Time spent running a task, retries included.",
			LabelKeys: []string{"executor"},
		}),
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *workerPool) name() observability.Label {
	return observability.Label{Key: "executor", Value: p.cfg.Name}
}

func (p *workerPool) SubmitContext(ctx context.Context, r taskinterception.Runnable) *async.Future[struct{}] {
	return p.Submit(scope.NewLocal(ctx, scope.WithLogger(p.log)), r)
}

func (p *workerPool) Submit(local *scope.Local, r taskinterception.Runnable) *async.Future[struct{}] {
	if r == nil {
		return async.Failed[struct{}](fmt.Errorf("%w: nil task", executor.ErrRejected))
	}

	j := &job{
		task:   p.icpt.OnSubmit(local, r),
		future: async.NewFuture[struct{}](),
	}
	if p.cfg.IDs != nil {
		j.id = p.cfg.IDs.Generate()
	}
	j.future.OnComplete(func(_ struct{}, err error) {
		if errors.Is(err, async.ErrCanceled) {
			p.icpt.OnCancel(j.task)
		}
	})

	if p.cfg.Breaker != nil && p.cfg.Breaker.State() == circuitbreaker.Open {
		p.reject(j, fmt.Errorf("%w: %w", executor.ErrRejected, circuitbreaker.ErrOpen))
		return j.future
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.reject(j, executor.ErrClosed)
		return j.future
	}

	select {
	case p.jobs <- j:
		p.submitted.Inc(1, p.name())
		p.queued.Add(1, p.name())
	default:
		p.reject(j, fmt.Errorf("%w: queue full", executor.ErrRejected))
	}
	return j.future
}

// reject fails a task that never reached a worker. It counts as a
// cancellation for the propagated state.
func (p *workerPool) reject(j *job, err error) {
	p.icpt.OnCancel(j.task)
	j.future.Fail(err)
	p.finished.Inc(1, p.name(), observability.Label{Key: "result", Value: "rejected"})
	p.log.Warn("task rejected",
		observability.String("task", taskinterception.TypeName(j.task)),
		observability.Err(err))
}

func (p *workerPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()

	local := scope.NewLocal(context.Background(), scope.WithLogger(
		p.log.With(observability.Int("worker", id)),
	))
	for j := range p.jobs {
		p.queued.Add(-1, p.name())
		p.run(local, j)
	}
}

func (p *workerPool) run(local *scope.Local, j *job) {
	if j.future.IsDone() {
		p.icpt.OnCancel(j.task)
		p.finished.Inc(1, p.name(), observability.Label{Key: "result", Value: "canceled"})
		return
	}

	stop := p.duration.Start(p.name())
	var err error
	g := p.icpt.OnExecuteStart(local, j.task)
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("executor: worker panicked: %v", v)
			p.log.Error("worker panicked",
				observability.String("task", taskinterception.TypeName(j.task)),
				observability.Any("panic", v))
		}
		p.icpt.OnExecuteEnd(g, j.task, err)
		stop()
		p.settle(j, err)
	}()

	err = p.execute(local.Current(), j)
}

func (p *workerPool) execute(ctx context.Context, j *job) (err error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	j.future.OnComplete(func(struct{}, error) { cancel() })

	if p.cfg.IDs != nil {
		ctx = executor.WithTaskID(ctx, j.id)
	}
	if p.cfg.Tracer != nil {
		var span observability.Span
		ctx, span = p.cfg.Tracer.Start(ctx, p.cfg.Name+" task")
		if p.cfg.IDs != nil {
			span.SetAttribute("task.id", strconv.FormatInt(j.id, 10))
		}
		defer func() {
			if err != nil {
				span.RecordError(err)
			}
			span.End()
		}()
	}

	// Registered after the span so a panic is already err when the span ends.
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("executor: task panicked: %v", v)
			p.log.Error("task panicked",
				observability.String("task", taskinterception.TypeName(j.task)),
				observability.Any("panic", v))
		}
	}()

	err = p.cfg.Retry.Execute(ctx, func(ctx context.Context, attempt uint64) error {
		if attempt > 1 {
			p.log.Debug("retrying task",
				observability.String("task", taskinterception.TypeName(j.task)),
				observability.Int64("attempt", int64(attempt)))
		}
		if p.cfg.Breaker == nil {
			return j.task.Run(ctx)
		}
		_, err := p.cfg.Breaker.Execute(func() (any, error) {
			return nil, j.task.Run(ctx)
		})
		return err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		err = fmt.Errorf("%w: %w", executor.ErrRejected, err)
	}
	return err
}

func (p *workerPool) settle(j *job, err error) {
	result := "ok"
	var won bool
	if err != nil {
		result = "error"
		won = j.future.Fail(err)
	} else {
		won = j.future.Complete(struct{}{})
	}
	if !won {
		result = "canceled"
	}
	p.finished.Inc(1, p.name(), observability.Label{Key: "result", Value: result})
}
