package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "config", "soltx.yml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFileDevnet(t *testing.T) {
	cfg, err := LoadFile(filepath.Join("..", "..", "config", "soltx.devnet.yml"))
	require.NoError(t, err)
	require.Equal(t, "wss://api.devnet.solana.com", cfg.RPC.WSEndpoint)
	require.Equal(t, 10*time.Second, cfg.RPC.RequestTimeout)
	require.Equal(t, DefaultDialTimeout, cfg.RPC.DialTimeout)
	require.Equal(t, solrpc.Finalized, cfg.Confirmation.Commitment)
	require.Equal(t, DefaultPollInterval, cfg.Confirmation.PollInterval)
	require.True(t, cfg.Prometheus.Enabled)
	require.Equal(t, []string{"localhost:2112"}, cfg.Prometheus.GetAddresses())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestUnmarshalInvalid(t *testing.T) {
	testCases := map[string]string{
		"unknown field":      "RPC:\n  Endpoitn: http://localhost:8899\n",
		"bad endpoint":       "RPC:\n  Endpoint: ftp://localhost\n",
		"no host":            "RPC:\n  Endpoint: http://\n",
		"bad ws endpoint":    "RPC:\n  WSEndpoint: http://localhost:8900\n",
		"negative timeout":   "RPC:\n  RequestTimeout: -1s\n",
		"negative rps":       "RPC:\n  RequestsPerSecond: -1\n",
		"zero burst":         "RPC:\n  RequestsPerSecond: 5\n  Burst: 0\n",
		"bad commitment":     "Confirmation:\n  Commitment: max\n",
		"zero poll interval": "Confirmation:\n  PollInterval: 0s\n",
		"zero retries":       "Confirmation:\n  PollRetryCount: 0\n",
		"zero rebroadcast":   "Confirmation:\n  RebroadcastInterval: 0s\n",
		"zero timeout":       "Confirmation:\n  Timeout: 0s\n",
		"bad log level":      "Logger:\n  LogLevel: loud\n",
		"bad log encoding":   "Logger:\n  LogEncoding: xml\n",
		"no prometheus addr": "Prometheus:\n  Enabled: true\n  Addresses: []\n",
		"bad duration":       "RPC:\n  DialTimeout: soon\n",
	}
	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestUnmarshalNoWS(t *testing.T) {
	cfg, err := Unmarshal([]byte("RPC:\n  WSEndpoint: \"\"\n"))
	require.NoError(t, err)
	require.Empty(t, cfg.RPC.WSEndpoint)
	require.Equal(t, DefaultEndpoint, cfg.RPC.Endpoint)
}
