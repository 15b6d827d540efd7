package implementation

import (
	"context"

	"github.com/jt828/go-trace-propagation/pkg/observability"
)

type Config struct {
	ServiceName  string
	OTLPEndpoint string
	MetricsAddr  string
}

func NewObservability(cfg Config) (observability.Observability, error) {
	log, err := NewZapLogger()
	if err != nil {
		return nil, err
	}

	meter := NewPrometheusMeter()

	tracer, shutdown, err := NewOtelTracer(context.Background(), cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return nil, err
	}

	metricsAddr := cfg.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}

	return &observabilityImplementation{
		log:         log,
		meter:       meter,
		tracer:      tracer,
		metricsAddr: metricsAddr,
		traceClose:  shutdown,
	}, nil
}
