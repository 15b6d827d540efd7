package interceptor

import (
	"context"
	"fmt"

	"github.com/jt828/go-trace-propagation/pkg/asyncend"
	"github.com/jt828/go-trace-propagation/pkg/instrumenter"
	"google.golang.org/grpc"
)

// UnitSpanName names the unit-of-work span of an RPC. It is a child of the
// transport span the otelgrpc stats handler starts for the same call.
func UnitSpanName(fullMethod string) string {
	return "unit " + fullMethod
}

// UnitInterceptor treats every unary call as one unit of work. The handler's
// context carries the unit span; work it hands to an executor through
// SubmitContext, from any goroutine, is parented on that span.
func UnitInterceptor(inst *instrumenter.Instrumenter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		ctx, end := inst.StartUnit(ctx, UnitSpanName(info.FullMethod))

		defer func() {
			if r := recover(); r != nil {
				end(asyncend.Outcome{Err: fmt.Errorf("panic: %v", r), Elements: -1})
				panic(r)
			}
			end(asyncend.Outcome{Err: err, Elements: -1})
		}()

		return handler(ctx, req)
	}
}

// StreamUnitInterceptor ends the unit when the handler returns or when the
// client goes away, whichever happens first. A client that disconnects is
// recorded as a cancellation.
func StreamUnitInterceptor(inst *instrumenter.Instrumenter) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		ctx, end := inst.StartUnit(ss.Context(), UnitSpanName(info.FullMethod))

		returned := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				end(asyncend.Outcome{Canceled: true, Elements: -1})
			case <-returned:
			}
		}()

		defer func() {
			close(returned)
			if r := recover(); r != nil {
				end(asyncend.Outcome{Err: fmt.Errorf("panic: %v", r), Elements: -1})
				panic(r)
			}
			end(asyncend.Outcome{Err: err, Elements: -1})
		}()

		return handler(srv, &unitStream{ServerStream: ss, ctx: ctx})
	}
}

type unitStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *unitStream) Context() context.Context {
	return s.ctx
}
