package bootstrap

import (
	"errors"

	"github.com/jt828/go-trace-propagation/pkg/asyncend"
	"github.com/jt828/go-trace-propagation/pkg/circuitbreaker"
	cbImpl "github.com/jt828/go-trace-propagation/pkg/circuitbreaker/implementation"
	"github.com/jt828/go-trace-propagation/pkg/executor"
	executorImpl "github.com/jt828/go-trace-propagation/pkg/executor/implementation"
	"github.com/jt828/go-trace-propagation/pkg/instrumenter"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	"github.com/jt828/go-trace-propagation/pkg/retry"
	retryImpl "github.com/jt828/go-trace-propagation/pkg/retry/implementation"
	"github.com/jt828/go-trace-propagation/pkg/snowflake"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
)

type Engine struct {
	Instrumenter *instrumenter.Instrumenter
	Executor     executor.Executor
	Breaker      circuitbreaker.CircuitBreaker
}

// InitializeEngine wires the propagation engine and the executor that
// background work is submitted to.
func InitializeEngine(cfg Config, obs observability.Observability, ids snowflake.Snowflake) *Engine {
	log := obs.Logger()
	meter := obs.Meter()

	icpt := taskinterception.NewInterceptor(
		taskinterception.WithIncludes(cfg.ExecutorIncludes...),
		taskinterception.WithIncludeAll(cfg.ExecutorIncludeAll),
		taskinterception.WithLogger(log),
		taskinterception.WithMeter(meter),
	)
	inst := instrumenter.New(obs.Tracer(),
		instrumenter.WithRegistry(asyncend.NewDefaultRegistry(
			asyncend.WithLogger(log),
			asyncend.WithMeter(meter),
		)),
		instrumenter.WithInterceptor(icpt),
		instrumenter.WithLogger(log),
		instrumenter.WithExperimentalAttributes(cfg.ExperimentalAttributes),
	)

	breaker := cbImpl.NewCircuitBreaker(cfg.ServiceName+"-executor",
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				observability.String("breaker", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()))
		}),
	)

	exec := executorImpl.NewWorkerPool(
		executor.WithName("background"),
		executor.WithWorkers(cfg.Workers),
		executor.WithQueueSize(cfg.QueueSize),
		executor.WithRetry(retryImpl.NewRetry(cfg.MaxRetries,
			retry.WithRetryable(func(err error) bool {
				return !errors.Is(err, circuitbreaker.ErrOpen)
			}),
		)),
		executor.WithBreaker(breaker),
		executor.WithIDs(ids),
		executor.WithTracer(obs.Tracer()),
		executor.WithLogger(log),
		executor.WithMeter(meter),
		executor.WithInterceptor(icpt),
	)

	return &Engine{Instrumenter: inst, Executor: exec, Breaker: breaker}
}
