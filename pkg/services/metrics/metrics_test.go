package metrics

import (
	"io"
	"net/http"
	"testing"

	"github.com/nspcc-dev/soltx/pkg/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestPrometheusService(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := config.BasicService{Enabled: true, Addresses: []string{"127.0.0.1:0", "127.0.0.1:0"}}
	srv := NewPrometheusService(cfg, zaptest.NewLogger(t))
	require.NoError(t, srv.Start())
	addrs := srv.Addresses()
	require.Len(t, addrs, 1) // Duplicates are dropped.

	resp, err := http.Get("http://" + addrs[0] + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "go_goroutines")

	http.DefaultClient.CloseIdleConnections()
	srv.ShutDown()
	require.Empty(t, srv.Addresses())
}

func TestDisabledService(t *testing.T) {
	srv := NewPrometheusService(config.BasicService{Addresses: []string{"127.0.0.1:0"}}, nil)
	require.NoError(t, srv.Start())
	require.Empty(t, srv.Addresses())
	srv.ShutDown()
}

func TestServiceListenFailure(t *testing.T) {
	srv := NewPrometheusService(config.BasicService{Enabled: true, Addresses: []string{"256.0.0.1:1"}}, nil)
	require.Error(t, srv.Start())
	require.Empty(t, srv.Addresses())
}
