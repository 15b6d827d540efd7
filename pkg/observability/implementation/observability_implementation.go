package implementation

import (
	"context"

	"github.com/jt828/go-trace-propagation/pkg/observability"
)

type observabilityImplementation struct {
	log    observability.Logger
	meter  observability.Meter
	tracer observability.Tracer

	metricsAddr   string
	metricsServer *MetricsServer
	traceClose    func(context.Context) error
}

func (o *observabilityImplementation) Logger() observability.Logger { return o.log }
func (o *observabilityImplementation) Meter() observability.Meter   { return o.meter }
func (o *observabilityImplementation) Tracer() observability.Tracer { return o.tracer }

// Start serves the prometheus registry. A metrics address that cannot be
// bound fails Start instead of leaving the process without /metrics.
func (o *observabilityImplementation) Start(ctx context.Context) error {
	reg := PromRegistry(o.meter)
	if reg == nil || o.metricsServer != nil {
		return nil
	}
	srv, err := StartMetricsServer(o.metricsAddr, reg, o.log)
	if err != nil {
		return err
	}
	o.metricsServer = srv
	return nil
}

// Close stops the metrics server and flushes the tracer. The first error wins.
func (o *observabilityImplementation) Close(ctx context.Context) error {
	var err error
	if o.metricsServer != nil {
		err = o.metricsServer.Shutdown(ctx)
	}
	if o.traceClose != nil {
		if e := o.traceClose(ctx); err == nil {
			err = e
		}
	}
	return err
}
