package pathctx_test

import (
	"context"
	"errors"
	"testing"

	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
	"github.com/jt828/go-trace-propagation/pkg/pathctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestExecution(t *testing.T) {
	t.Run("nodes are parented by path", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		tracer := tp.Tracer("test")

		rootCtx, rootSpan := tracer.Start(context.Background(), "query")
		exec := pathctx.NewExecution(obsImpl.NewOtelTracerFromProvider(tp, "test"), nil)
		exec.Begin(rootCtx)

		fieldCtx, field := exec.Enter(pathctx.ParsePath("/bookById"))
		_, name := exec.Enter(pathctx.ParsePath("/bookById/name"))
		_, other := exec.Enter(pathctx.ParsePath("/authors"))

		name.End(nil)
		field.End(nil)
		other.End(nil)
		rootSpan.End()

		byName := map[string]sdktrace.ReadOnlySpan{}
		for _, s := range recorder.Ended() {
			byName[s.Name()] = s
		}
		require.Len(t, byName, 4)

		rootID := trace.SpanContextFromContext(rootCtx).SpanID()
		fieldID := trace.SpanContextFromContext(fieldCtx).SpanID()
		assert.Equal(t, rootID, byName["/bookById"].Parent().SpanID())
		assert.Equal(t, fieldID, byName["/bookById/name"].Parent().SpanID())
		assert.Equal(t, rootID, byName["/authors"].Parent().SpanID())
	})

	t.Run("node ends once", func(t *testing.T) {
		recorder := tracetest.NewSpanRecorder()
		tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
		exec := pathctx.NewExecution(obsImpl.NewOtelTracerFromProvider(tp, "test"), nil)
		exec.Begin(context.Background())

		_, node := exec.Enter(pathctx.ParsePath("/book"))

		assert.True(t, node.End(errors.New("boom")))
		assert.False(t, node.End(nil))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, pathctx.Path{"book"}, node.Path())
	})
}
