package instrumenter_test

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/jt828/go-trace-propagation/pkg/async"
	"github.com/jt828/go-trace-propagation/pkg/asyncend"
	"github.com/jt828/go-trace-propagation/pkg/instrumenter"
	obsImpl "github.com/jt828/go-trace-propagation/pkg/observability/implementation"
	"github.com/jt828/go-trace-propagation/pkg/pathctx"
	"github.com/jt828/go-trace-propagation/pkg/scope"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func setup(opts ...instrumenter.Option) (*instrumenter.Instrumenter, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return instrumenter.New(obsImpl.NewOtelTracerFromProvider(tp, "test"), opts...), recorder
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInstrumenter_StartUnit(t *testing.T) {
	t.Run("unit ends once", func(t *testing.T) {
		inst, recorder := setup()

		ctx, end := inst.StartUnit(context.Background(), "unit")

		assert.True(t, trace.SpanContextFromContext(ctx).IsValid())
		assert.True(t, end(asyncend.Outcome{Elements: -1}))
		assert.False(t, end(asyncend.Outcome{Err: errors.New("late"), Elements: -1}))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Unset, spans[0].Status().Code)
	})
}

func TestInstrumenter_OnAsyncReturn(t *testing.T) {
	t.Run("future keeps the span open until it completes", func(t *testing.T) {
		inst, recorder := setup()
		f := async.NewFuture[string]()

		wrapped := inst.OnAsyncReturn(context.Background(), "lookup", f)
		assert.Same(t, f, wrapped)
		assert.Empty(t, recorder.Ended())

		f.Complete("done")
		f.Fail(errors.New("late"))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, "lookup", spans[0].Name())
		assert.Equal(t, codes.Unset, spans[0].Status().Code)
	})

	t.Run("failed future records the error", func(t *testing.T) {
		inst, recorder := setup()
		f := async.NewFuture[string]()

		inst.OnAsyncReturn(context.Background(), "lookup", f)
		f.Fail(errors.New("boom"))

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("canceled future is marked canceled", func(t *testing.T) {
		inst, recorder := setup()
		f := async.NewFuture[string]()

		inst.OnAsyncReturn(context.Background(), "lookup", f)
		f.Cancel()

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		v, ok := attr(spans[0], instrumenter.AttrCanceled)
		require.True(t, ok)
		assert.True(t, v.AsBool())
		assert.Equal(t, codes.Unset, spans[0].Status().Code)
	})

	t.Run("unknown handle ends the span immediately", func(t *testing.T) {
		inst, recorder := setup()

		wrapped := inst.OnAsyncReturn(context.Background(), "sync", "plain value")

		assert.Equal(t, "plain value", wrapped)
		assert.Len(t, recorder.Ended(), 1)
	})

	t.Run("stream element count is recorded when enabled", func(t *testing.T) {
		inst, recorder := setup(instrumenter.WithExperimentalAttributes(true))

		wrapped := inst.OnAsyncReturn(context.Background(), "list", async.Just(1, 2, 3))
		values, err := async.Collect(context.Background(), wrapped.(*async.Stream[int]))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, values)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		v, ok := attr(spans[0], instrumenter.AttrElements)
		require.True(t, ok)
		assert.Equal(t, int64(3), v.AsInt64())
	})

	t.Run("stream element count is omitted by default", func(t *testing.T) {
		inst, recorder := setup()

		wrapped := inst.OnAsyncReturn(context.Background(), "list", async.Just(1, 2, 3))
		_, err := async.Collect(context.Background(), wrapped.(*async.Stream[int]))
		require.NoError(t, err)

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		_, ok := attr(spans[0], instrumenter.AttrElements)
		assert.False(t, ok)
	})
}

func TestInstrumenter_Instrument(t *testing.T) {
	t.Run("handle returned by fn ends the span", func(t *testing.T) {
		inst, recorder := setup()
		f := async.NewFuture[int]()

		var inner context.Context
		handle, err := inst.Instrument(context.Background(), "call", func(ctx context.Context) (any, error) {
			inner = ctx
			return f, nil
		})

		require.NoError(t, err)
		assert.Same(t, f, handle)
		assert.True(t, trace.SpanContextFromContext(inner).IsValid())
		assert.Empty(t, recorder.Ended())

		f.Complete(1)
		assert.Len(t, recorder.Ended(), 1)
	})

	t.Run("error from fn ends the span right away", func(t *testing.T) {
		inst, recorder := setup()
		boom := errors.New("boom")

		_, err := inst.Instrument(context.Background(), "call", func(context.Context) (any, error) {
			return nil, boom
		})

		assert.ErrorIs(t, err, boom)
		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("panic in fn ends the span and is re-raised", func(t *testing.T) {
		inst, recorder := setup()

		assert.PanicsWithValue(t, "boom", func() {
			_, _ = inst.Instrument(context.Background(), "call", func(context.Context) (any, error) {
				panic("boom")
			})
		})

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
	})

	t.Run("goexit in fn ends the span without a panic", func(t *testing.T) {
		inst, recorder := setup()

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = inst.Instrument(context.Background(), "call", func(context.Context) (any, error) {
				runtime.Goexit()
				return nil, nil
			})
		}()
		<-done

		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Equal(t, codes.Error, spans[0].Status().Code)
		assert.Equal(t, instrumenter.ErrUnitExited.Error(), spans[0].Status().Description)
	})
}

func TestInstrumenter_Tasks(t *testing.T) {
	t.Run("submitted task resumes under the submitting span", func(t *testing.T) {
		inst, _ := setup(instrumenter.WithInterceptor(
			taskinterception.NewInterceptor(taskinterception.WithIncludeAll(true)),
		))
		ctx, end := inst.StartUnit(context.Background(), "request")
		defer end(asyncend.Outcome{Elements: -1})

		submitter := scope.NewLocal(ctx)
		worker := scope.NewLocal(context.Background())

		task := inst.OnSubmit(submitter, taskinterception.RunnableFunc(func(context.Context) error { return nil }))
		g := inst.OnExecuteStart(worker, task)

		assert.Equal(t,
			trace.SpanContextFromContext(ctx).SpanID(),
			trace.SpanContextFromContext(worker.Current()).SpanID())

		inst.OnExecuteEnd(g, task, nil)
		assert.False(t, trace.SpanContextFromContext(worker.Current()).IsValid())
	})

	t.Run("canceled task drops its context", func(t *testing.T) {
		icpt := taskinterception.NewInterceptor(taskinterception.WithIncludeAll(true))
		inst, _ := setup(instrumenter.WithInterceptor(icpt))
		submitter := scope.NewLocal(context.Background())

		task := inst.OnSubmit(submitter, taskinterception.RunnableFunc(func(context.Context) error { return nil }))
		inst.OnCancel(task)

		_, ok := icpt.Attachment(task)
		assert.False(t, ok)
	})
}

func TestInstrumenter_Tree(t *testing.T) {
	t.Run("nodes are parented on their nearest registered ancestor", func(t *testing.T) {
		inst, recorder := setup()
		ctx, end := inst.StartUnit(context.Background(), "query")

		exec := inst.NewExecution(ctx)
		fieldCtx, field := inst.OnTreeNodeEnter(exec, pathctx.ParsePath("/bookById"))
		_, name := inst.OnTreeNodeEnter(exec, pathctx.ParsePath("/bookById/name"))
		inst.OnTreeNodeExit(name, nil)
		inst.OnTreeNodeExit(field, nil)
		inst.OnTreeNodeExit(nil, nil)
		end(asyncend.Outcome{Elements: -1})

		byName := map[string]sdktrace.ReadOnlySpan{}
		for _, s := range recorder.Ended() {
			byName[s.Name()] = s
		}
		require.Len(t, byName, 3)
		assert.Equal(t, trace.SpanContextFromContext(ctx).SpanID(), byName["/bookById"].Parent().SpanID())
		assert.Equal(t, trace.SpanContextFromContext(fieldCtx).SpanID(), byName["/bookById/name"].Parent().SpanID())
	})
}
