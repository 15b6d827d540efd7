package implementation

import (
	"context"
	"fmt"
	"time"

	"github.com/jt828/go-trace-propagation/pkg/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const defaultOTLPEndpoint = "localhost:4317"

type otelTracer struct {
	tracer trace.Tracer
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() { s.span.End() }

func (s otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s otelSpan) SetAttribute(key string, value any) {
	s.span.SetAttributes(toAttribute(key, value))
}

func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case fmt.Stringer:
		return attribute.Stringer(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}

func (t otelTracer) Start(
	ctx context.Context,
	name string,
) (context.Context, observability.Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, otelSpan{span}
}

// NewOtelTracerFromProvider builds a Tracer on top of an existing provider.
func NewOtelTracerFromProvider(tp trace.TracerProvider, name string) observability.Tracer {
	return otelTracer{tracer: tp.Tracer(name)}
}

func NewOtelTracer(
	ctx context.Context,
	serviceName string,
	endpoint string,
) (observability.Tracer, func(ctx context.Context) error, error) {
	if endpoint == "" {
		endpoint = defaultOTLPEndpoint
	}

	exp, err := otlptracegrpc.New(
		ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			attribute.String("service.version", "0.0.1"),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return otelTracer{tracer: otel.Tracer(serviceName)},
		func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return tp.Shutdown(ctx)
		},
		nil
}
