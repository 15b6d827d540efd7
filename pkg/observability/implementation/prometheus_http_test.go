package implementation

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/jt828/go-trace-propagation/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartMetricsServer(t *testing.T) {
	t.Run("serves the registry", func(t *testing.T) {
		meter := NewPrometheusMeter()
		meter.Counter("jobs_total", observability.MetricOpt{Help: "Jobs."}).Inc(2)

		srv, err := StartMetricsServer("127.0.0.1:0", PromRegistry(meter), NewNopLogger())
		require.NoError(t, err)
		defer func() { _ = srv.Shutdown(context.Background()) }()

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get("http://" + srv.Addr() + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, string(body), "jobs_total 2")
	})

	t.Run("address in use is returned", func(t *testing.T) {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer taken.Close()

		srv, err := StartMetricsServer(taken.Addr().String(), PromRegistry(NewPrometheusMeter()), NewNopLogger())
		assert.Nil(t, srv)
		assert.ErrorContains(t, err, "metrics server: listen")
	})
}

func TestObservability_Start(t *testing.T) {
	t.Run("bind failure fails start", func(t *testing.T) {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		defer taken.Close()

		o := &observabilityImplementation{
			log:         NewNopLogger(),
			meter:       NewPrometheusMeter(),
			metricsAddr: taken.Addr().String(),
		}

		assert.Error(t, o.Start(context.Background()))
		assert.NoError(t, o.Close(context.Background()))
	})

	t.Run("start then close", func(t *testing.T) {
		o := &observabilityImplementation{
			log:         NewNopLogger(),
			meter:       NewPrometheusMeter(),
			metricsAddr: "127.0.0.1:0",
		}

		require.NoError(t, o.Start(context.Background()))
		require.NotNil(t, o.metricsServer)
		assert.NoError(t, o.Close(context.Background()))
	})
}
