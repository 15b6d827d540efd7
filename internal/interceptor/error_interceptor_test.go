package interceptor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jt828/go-trace-propagation/internal/interceptor"
	"github.com/jt828/go-trace-propagation/pkg/async"
	"github.com/jt828/go-trace-propagation/pkg/circuitbreaker"
	"github.com/jt828/go-trace-propagation/pkg/executor"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type mockLogger struct {
	errorCalls []struct {
		msg    string
		fields []observability.Field
	}
}

func (m *mockLogger) Debug(msg string, fields ...observability.Field) {}
func (m *mockLogger) Error(msg string, fields ...observability.Field) {
	m.errorCalls = append(m.errorCalls, struct {
		msg    string
		fields []observability.Field
	}{msg, fields})
}
func (m *mockLogger) Fatal(msg string, fields ...observability.Field)         {}
func (m *mockLogger) Info(msg string, fields ...observability.Field)          {}
func (m *mockLogger) Warn(msg string, fields ...observability.Field)          {}
func (m *mockLogger) With(fields ...observability.Field) observability.Logger { return m }

func TestErrorInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	t.Run("no error passes through unchanged", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.ErrorInterceptor(log)

		resp, err := i(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
		assert.Len(t, log.errorCalls, 0)
	})

	cases := []struct {
		name string
		err  error
		code codes.Code
	}{
		{"rejected task maps to codes.ResourceExhausted", fmt.Errorf("submit: %w", executor.ErrRejected), codes.ResourceExhausted},
		{"open breaker maps to codes.Unavailable", fmt.Errorf("%w: %w", executor.ErrRejected, circuitbreaker.ErrOpen), codes.Unavailable},
		{"closed executor maps to codes.Unavailable", executor.ErrClosed, codes.Unavailable},
		{"canceled future maps to codes.Canceled", async.ErrCanceled, codes.Canceled},
		{"context deadline maps to codes.DeadlineExceeded", context.DeadlineExceeded, codes.DeadlineExceeded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := &mockLogger{}
			i := interceptor.ErrorInterceptor(log)

			_, err := i(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
				return nil, tc.err
			})

			require.Error(t, err)
			st, ok := status.FromError(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, st.Code())
			assert.Equal(t, tc.err.Error(), st.Message())
			assert.Len(t, log.errorCalls, 0)
		})
	}

	t.Run("status errors pass through", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.ErrorInterceptor(log)

		_, err := i(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.NotFound, "no such book")
		})

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.NotFound, st.Code())
		assert.Len(t, log.errorCalls, 0)
	})

	t.Run("unknown error maps to codes.Internal with generic message", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.ErrorInterceptor(log)

		_, err := i(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			return nil, errors.New("queue exploded")
		})

		require.Error(t, err)
		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.Internal, st.Code())
		assert.Equal(t, "internal server error", st.Message())
	})

	t.Run("unknown error logs with error and method fields", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.ErrorInterceptor(log)

		unknownErr := errors.New("some internal failure")
		_, err := i(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			return nil, unknownErr
		})

		require.Error(t, err)
		require.Len(t, log.errorCalls, 1)
		assert.Equal(t, "unhandled error", log.errorCalls[0].msg)
		assert.Contains(t, log.errorCalls[0].fields, observability.Err(unknownErr))
		assert.Contains(t, log.errorCalls[0].fields, observability.String("method", info.FullMethod))
	})

	t.Run("panic is recovered as codes.Internal", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.ErrorInterceptor(log)

		_, err := i(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
			panic("boom")
		})

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.Internal, st.Code())
		require.Len(t, log.errorCalls, 1)
		assert.Equal(t, "panic recovered", log.errorCalls[0].msg)
	})
}

func TestStreamErrorInterceptor(t *testing.T) {
	info := &grpc.StreamServerInfo{FullMethod: "/test.Service/Watch"}

	t.Run("rejected task maps to codes.ResourceExhausted", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.StreamErrorInterceptor(log)

		err := i(nil, &fakeStream{ctx: context.Background()}, info, func(srv any, ss grpc.ServerStream) error {
			return executor.ErrRejected
		})

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.ResourceExhausted, st.Code())
	})

	t.Run("panic is recovered as codes.Internal", func(t *testing.T) {
		log := &mockLogger{}
		i := interceptor.StreamErrorInterceptor(log)

		err := i(nil, &fakeStream{ctx: context.Background()}, info, func(srv any, ss grpc.ServerStream) error {
			panic("boom")
		})

		st, ok := status.FromError(err)
		require.True(t, ok)
		assert.Equal(t, codes.Internal, st.Code())
	})
}
