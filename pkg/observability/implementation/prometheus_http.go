package implementation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jt828/go-trace-propagation/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer exposes a registry on /metrics.
type MetricsServer struct {
	srv *http.Server
	lis net.Listener
}

// StartMetricsServer binds addr before returning, so a taken port is
// reported to the caller. Errors after that point are logged.
func StartMetricsServer(addr string, reg *prometheus.Registry, log observability.Logger) (*MetricsServer, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics server: listen %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog: zapErrorLog{log},
		Registry: reg,
	}))

	m := &MetricsServer{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		lis: lis,
	}
	go func() {
		if err := m.srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", observability.String("addr", m.Addr()), observability.Err(err))
		}
	}()
	log.Info("metrics server running", observability.String("addr", m.Addr()))
	return m, nil
}

// Addr is the bound address, useful when addr asked for port 0.
func (m *MetricsServer) Addr() string {
	return m.lis.Addr().String()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}

// zapErrorLog adapts Logger to promhttp's Println-style error log.
type zapErrorLog struct {
	log observability.Logger
}

func (z zapErrorLog) Println(v ...any) {
	z.log.Error("metrics handler", observability.String("error", fmt.Sprint(v...)))
}
