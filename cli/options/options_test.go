package options

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nspcc-dev/soltx/pkg/config"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
	"go.uber.org/zap/zapcore"
)

func TestGetTimeoutContext(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Add(DefaultTimeout).Compare(dl) <= 0 && dl.Compare(end.Add(DefaultTimeout)) <= 0)
	})

	t.Run("set", func(t *testing.T) {
		start := time.Now()
		set := flag.NewFlagSet("flagSet", flag.ExitOnError)
		set.Duration("timeout", time.Duration(20), "")
		ctx := cli.NewContext(cli.NewApp(), set, nil)
		actualCtx, cancel := GetTimeoutContext(ctx)
		defer cancel()
		end := time.Now()
		dl, _ := actualCtx.Deadline()
		require.True(t, start.Before(dl) && dl.Before(end.Add(time.Nanosecond*20)))
	})
}

// getConfig runs an application with common flags, so that flag aliases
// are handled the same way they are for real commands.
func getConfig(t *testing.T, args ...string) (config.Config, error) {
	var (
		cfg    config.Config
		cfgErr error
		ctl    = cli.NewApp()
	)
	ctl.Flags = Common
	ctl.Action = func(ctx *cli.Context) error {
		cfg, cfgErr = GetConfigFromContext(ctx)
		return nil
	}
	require.NoError(t, ctl.Run(append([]string{"test"}, args...)))
	return cfg, cfgErr
}

func TestGetConfigFromContext(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := getConfig(t)
		require.NoError(t, err)
		require.Equal(t, config.Default(), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		cfg, err := getConfig(t,
			"--config-file", filepath.Join("..", "..", "config", "soltx.devnet.yml"),
			"-r", "http://localhost:1234",
			"--ws-endpoint", "ws://localhost:1235",
			"--commitment", "processed")
		require.NoError(t, err)
		require.Equal(t, "http://localhost:1234", cfg.RPC.Endpoint)
		require.Equal(t, "ws://localhost:1235", cfg.RPC.WSEndpoint)
		require.Equal(t, solrpc.Processed, cfg.Confirmation.Commitment)
		require.Equal(t, 10*time.Second, cfg.RPC.RequestTimeout)
	})

	t.Run("long endpoint flag", func(t *testing.T) {
		cfg, err := getConfig(t, "--rpc-endpoint", "https://localhost:1234")
		require.NoError(t, err)
		require.Equal(t, "https://localhost:1234", cfg.RPC.Endpoint)
	})

	t.Run("websocket endpoint follows RPC endpoint", func(t *testing.T) {
		cfg, err := getConfig(t,
			"--config-file", filepath.Join("..", "..", "config", "soltx.devnet.yml"),
			"-r", "https://rpc.example.com/v1")
		require.NoError(t, err)
		require.Equal(t, "wss://rpc.example.com/v1", cfg.RPC.WSEndpoint)

		cfg, err = getConfig(t, "-r", "http://10.0.0.1:8899")
		require.NoError(t, err)
		require.Equal(t, "ws://10.0.0.1:8900", cfg.RPC.WSEndpoint)
	})

	t.Run("bad commitment", func(t *testing.T) {
		_, err := getConfig(t, "--commitment", "rooted")
		require.Error(t, err)
	})

	t.Run("bad endpoint", func(t *testing.T) {
		_, err := getConfig(t, "-r", "tcp://localhost:1234")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := getConfig(t, "--config-file", filepath.Join(t.TempDir(), "none.yml"))
		require.Error(t, err)
	})
}

func TestWSEndpointFor(t *testing.T) {
	for in, out := range map[string]string{
		"http://127.0.0.1:8899":          "ws://127.0.0.1:8900",
		"https://api.devnet.solana.com":  "wss://api.devnet.solana.com",
		"http://[::1]:8899/rpc":          "ws://[::1]:8900/rpc",
		"https://node.example.com:443/x": "wss://node.example.com:444/x",
	} {
		ep, err := WSEndpointFor(in)
		require.NoError(t, err, in)
		require.Equal(t, out, ep)
	}
	for _, in := range []string{"tcp://localhost:1", "http://localhost:65535", "http://localhost:port"} {
		_, err := WSEndpointFor(in)
		require.Error(t, err, in)
	}
}

func TestHandleLoggingParams(t *testing.T) {
	d := t.TempDir()
	testLog := filepath.Join(d, "file.log")

	t.Run("invalid level", func(t *testing.T) {
		_, _, err := HandleLoggingParams(false, config.Logger{LogLevel: "qwerty"})
		require.Error(t, err)
	})

	t.Run("default", func(t *testing.T) {
		logger, lvl, err := HandleLoggingParams(false, config.Logger{LogPath: testLog})
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Sync() })
		require.Equal(t, zapcore.InfoLevel, lvl.Level())
		require.True(t, logger.Core().Enabled(zapcore.InfoLevel))
		require.False(t, logger.Core().Enabled(zapcore.DebugLevel))

		logger.Info("something")
		require.NoError(t, logger.Sync())
		data, err := os.ReadFile(testLog)
		require.NoError(t, err)
		require.Contains(t, string(data), "something")
	})

	t.Run("warn", func(t *testing.T) {
		logger, lvl, err := HandleLoggingParams(false, config.Logger{LogLevel: "warn", LogEncoding: "json", LogPath: filepath.Join(d, "sub", "warn.log")})
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Sync() })
		require.Equal(t, zapcore.WarnLevel, lvl.Level())
		require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	})

	t.Run("debug", func(t *testing.T) {
		logger, lvl, err := HandleLoggingParams(true, config.Logger{LogLevel: "warn", LogPath: testLog})
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Sync() })
		require.Equal(t, zapcore.DebugLevel, lvl.Level())
		require.True(t, logger.Core().Enabled(zapcore.DebugLevel))
	})
}
