package taskinterception_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	contextcellImpl "github.com/jt828/go-trace-propagation/pkg/contextcell/implementation"
	"github.com/jt828/go-trace-propagation/pkg/scope"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey string

func tagged(parent context.Context, v string) context.Context {
	return context.WithValue(parent, ctxKey("tag"), v)
}

func tagOf(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey("tag")).(string)
	return v
}

type reindexJob struct {
	seen string
}

func (j *reindexJob) Run(ctx context.Context) error {
	j.seen = tagOf(ctx)
	return nil
}

type otherJob struct{}

func (otherJob) Run(context.Context) error { return nil }

func newInterceptor(opts ...taskinterception.Option) (*taskinterception.Interceptor, func() int) {
	cell := contextcellImpl.NewWeakCell[taskinterception.Task, *taskinterception.PropagatedState]()
	opts = append(opts, taskinterception.WithCell(cell))
	return taskinterception.NewInterceptor(opts...), cell.Len
}

func TestConfig_Allows(t *testing.T) {
	t.Run("nothing is allowed by default", func(t *testing.T) {
		cfg := taskinterception.ApplyOptions()
		assert.False(t, cfg.Allows("*taskinterception_test.reindexJob"))
	})

	t.Run("exact names and prefixes match", func(t *testing.T) {
		cfg := taskinterception.ApplyOptions(taskinterception.WithIncludes("*jobs.Reindex", "*billing.*"))

		assert.True(t, cfg.Allows("*jobs.Reindex"))
		assert.False(t, cfg.Allows("*jobs.ReindexAll"))
		assert.True(t, cfg.Allows("*billing.Invoice"))
		assert.False(t, cfg.Allows("billing.Invoice"))
	})

	t.Run("include all overrides the list", func(t *testing.T) {
		cfg := taskinterception.ApplyOptions(taskinterception.WithIncludeAll(true))
		assert.True(t, cfg.Allows("anything"))
	})
}

func TestInterceptor_Propagation(t *testing.T) {
	t.Run("goroutines sharing one request context submit independently", func(t *testing.T) {
		icpt, attached := newInterceptor(taskinterception.WithIncludeAll(true))
		request := tagged(context.Background(), "request")

		const goroutines, perGoroutine = 8, 32
		wrapped := make(chan taskinterception.Runnable, goroutines*perGoroutine)
		var wg sync.WaitGroup
		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				local := scope.NewLocal(request)
				for n := 0; n < perGoroutine; n++ {
					wrapped <- icpt.OnSubmit(local, &reindexJob{})
				}
			}()
		}
		wg.Wait()
		close(wrapped)

		assert.Equal(t, goroutines*perGoroutine, attached())
		worker := scope.NewLocal(context.Background())
		for r := range wrapped {
			require.IsType(t, &taskinterception.Task{}, r)
			require.NoError(t, icpt.Execute(worker, r))
			assert.Equal(t, "request", r.(*taskinterception.Task).Unwrap().(*reindexJob).seen)
		}
		assert.Equal(t, 0, attached())
	})

	t.Run("task runs under the submitter context", func(t *testing.T) {
		icpt, _ := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))
		worker := scope.NewLocal(tagged(context.Background(), "worker"))
		job := &reindexJob{}

		wrapped := icpt.OnSubmit(submitter, job)
		require.IsType(t, &taskinterception.Task{}, wrapped)

		require.NoError(t, icpt.Execute(worker, wrapped))
		assert.Equal(t, "request", job.seen)
		assert.Equal(t, "worker", tagOf(worker.Current()))
		assert.Equal(t, 0, worker.Open())
	})

	t.Run("context is captured at submit time", func(t *testing.T) {
		icpt, _ := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(context.Background())
		worker := scope.NewLocal(context.Background())
		job := &reindexJob{}

		g := submitter.Activate(tagged(context.Background(), "inner"))
		wrapped := icpt.OnSubmit(submitter, job)
		g.Close()

		require.NoError(t, icpt.Execute(worker, wrapped))
		assert.Equal(t, "inner", job.seen)
	})

	t.Run("types outside the include list are untouched", func(t *testing.T) {
		icpt, size := newInterceptor(taskinterception.WithIncludes("*jobs.Reindex"))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))
		job := &reindexJob{}

		assert.Same(t, job, icpt.OnSubmit(submitter, job))
		assert.Equal(t, 0, size())
	})

	t.Run("wrapping twice is a pass through", func(t *testing.T) {
		icpt, size := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))

		once := icpt.OnSubmit(submitter, otherJob{})
		twice := icpt.OnSubmit(submitter, once)

		assert.Same(t, once, twice)
		assert.Equal(t, 1, size())
		assert.Equal(t, otherJob{}, once.(*taskinterception.Task).Unwrap())
	})

	t.Run("missing attachment runs under the worker context", func(t *testing.T) {
		icpt, _ := newInterceptor(taskinterception.WithIncludeAll(true))
		worker := scope.NewLocal(tagged(context.Background(), "worker"))
		job := &reindexJob{}

		require.NoError(t, icpt.Execute(worker, job))
		assert.Equal(t, "worker", job.seen)
	})

	t.Run("state is consumed once", func(t *testing.T) {
		icpt, _ := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))
		worker := scope.NewLocal(context.Background())

		wrapped := icpt.OnSubmit(submitter, otherJob{})
		first := icpt.OnExecuteStart(worker, wrapped)
		second := icpt.OnExecuteStart(worker, wrapped)

		assert.NotNil(t, first)
		assert.Nil(t, second)
		icpt.OnExecuteEnd(first, wrapped, nil)
		assert.Equal(t, 0, worker.Open())
	})
}

func TestInterceptor_Cleanup(t *testing.T) {
	t.Run("entry is removed after execution", func(t *testing.T) {
		icpt, size := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))
		worker := scope.NewLocal(context.Background())

		wrapped := icpt.OnSubmit(submitter, otherJob{})
		require.Equal(t, 1, size())

		require.NoError(t, icpt.Execute(worker, wrapped))
		assert.Equal(t, 0, size())
	})

	t.Run("no leak on cancel", func(t *testing.T) {
		icpt, size := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))

		wrapped := icpt.OnSubmit(submitter, otherJob{})
		ctx, ok := icpt.Attachment(wrapped)
		require.True(t, ok)
		assert.Equal(t, "request", tagOf(ctx))

		icpt.OnCancel(wrapped)

		_, ok = icpt.Attachment(wrapped)
		assert.False(t, ok)
		assert.Equal(t, 0, size())
	})

	t.Run("failing task still cleans up", func(t *testing.T) {
		icpt, size := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))
		worker := scope.NewLocal(context.Background())
		boom := errors.New("boom")

		wrapped := icpt.OnSubmit(submitter, taskinterception.RunnableFunc(func(context.Context) error {
			return boom
		}))

		assert.ErrorIs(t, icpt.Execute(worker, wrapped), boom)
		assert.Equal(t, 0, size())
		assert.Equal(t, 0, worker.Open())
	})

	t.Run("panicking task restores the worker lane", func(t *testing.T) {
		icpt, size := newInterceptor(taskinterception.WithIncludeAll(true))
		submitter := scope.NewLocal(tagged(context.Background(), "request"))
		worker := scope.NewLocal(tagged(context.Background(), "worker"))

		wrapped := icpt.OnSubmit(submitter, taskinterception.RunnableFunc(func(context.Context) error {
			panic("boom")
		}))

		assert.PanicsWithValue(t, "boom", func() {
			_ = icpt.Execute(worker, wrapped)
		})
		assert.Equal(t, 0, size())
		assert.Equal(t, "worker", tagOf(worker.Current()))
	})
}
