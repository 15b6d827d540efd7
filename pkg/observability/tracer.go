package observability

import "context"

type Tracer interface {
	Start(ctx context.Context, name string) (context.Context, Span)
}

// Span is the handle the engine needs from a started span. Ending a span is
// not idempotent across implementations, callers end it at most once.
type Span interface {
	End()
	RecordError(err error)
	SetAttribute(key string, value any)
}
