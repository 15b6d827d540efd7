package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/jt828/go-trace-propagation/internal/bootstrap"
	"github.com/jt828/go-trace-propagation/internal/interceptor"
	"github.com/jt828/go-trace-propagation/pkg/observability"
	"github.com/jt828/go-trace-propagation/pkg/observability/implementation"
	"github.com/jt828/go-trace-propagation/pkg/taskinterception"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appCfg, err := bootstrap.LoadConfig()
	if err != nil {
		panic(err)
	}

	obs, err := implementation.NewObservability(implementation.Config{
		ServiceName:  appCfg.ServiceName,
		OTLPEndpoint: appCfg.OTLPEndpoint,
		MetricsAddr:  appCfg.MetricsAddr,
	})
	if err != nil {
		panic(err)
	}
	log := obs.Logger()
	reg := implementation.PromRegistry(obs.Meter())
	if reg == nil {
		log.Fatal("prometheus registry not available")
	}

	grpcMetrics := grpc_prometheus.NewServerMetrics()
	reg.MustRegister(grpcMetrics)

	if err := obs.Start(ctx); err != nil {
		log.Fatal("failed to start observability", observability.Err(err))
	}

	idGen, err := bootstrap.InitializeSnowflake(appCfg)
	if err != nil {
		log.Fatal("failed to initialize snowflake", observability.Err(err))
	}
	engine := bootstrap.InitializeEngine(appCfg, obs, idGen)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info("Shutting down server...")
		cancel() // cancel root context
	}()

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", observability.Err(err))
	}

	// otelgrpc records the transport span of each call; the unit interceptors
	// add a "unit <method>" child that ends once per call and parents the
	// executor tasks the handler submits.
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			interceptor.ErrorInterceptor(log),
			interceptor.UnitInterceptor(engine.Instrumenter),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
			interceptor.StreamErrorInterceptor(log),
			interceptor.StreamUnitInterceptor(engine.Instrumenter),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	probe := func() {
		probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
		defer probeCancel()

		f := engine.Executor.SubmitContext(probeCtx, taskinterception.RunnableFunc(func(context.Context) error {
			return nil
		}))
		if _, err := f.Await(probeCtx); err != nil {
			log.Warn("executor probe failed, server marked as not serving", observability.Err(err))
			healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
			return
		}
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	}
	probe()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()

	grpcMetrics.InitializeMetrics(server)

	go func() {
		log.Info("gRPC server running", observability.String("addr", appCfg.GRPCAddr))
		if err := server.Serve(lis); err != nil {
			log.Fatal("failed to serve", observability.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("Graceful stopping gRPC server...")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	server.GracefulStop()
	log.Info("gRPC server stopped")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := engine.Executor.Close(shutdownCtx); err != nil {
		log.Error("failed to drain executor", observability.Err(err))
	}
	if err := obs.Close(shutdownCtx); err != nil {
		log.Error("failed to close observability", observability.Err(err))
	}
}
