/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nspcc-dev/soltx/pkg/config"
	"github.com/nspcc-dev/soltx/pkg/rpcclient"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultTimeout is the default timeout of the whole command, it's about
// the lifetime of a recent blockhash.
const DefaultTimeout = 90 * time.Second

// RPCEndpointFlag is a long flag name for an RPC endpoint. It can be used to
// check for flag presence in the context.
const RPCEndpointFlag = "rpc-endpoint"

// WSEndpointFlag is a long flag name for a websocket endpoint.
const WSEndpointFlag = "ws-endpoint"

// RPC is a set of flags used for RPC connections (endpoints and timeout).
var RPC = []cli.Flag{
	cli.StringFlag{
		Name:  RPCEndpointFlag + ", r",
		Usage: "RPC node address (overrides configuration)",
	},
	cli.StringFlag{
		Name:  WSEndpointFlag,
		Usage: "websocket node address used for subscriptions (overrides configuration)",
	},
	cli.DurationFlag{
		Name:  "timeout, s",
		Value: DefaultTimeout,
		Usage: "Timeout for the operation",
	},
}

// ConfigFile is a flag for commands that use soltx configuration file.
var ConfigFile = cli.StringFlag{
	Name:  "config-file",
	Usage: "path to the configuration file (defaults are used if not set)",
}

// Commitment is a flag for the target commitment level.
var Commitment = cli.StringFlag{
	Name:  "commitment, c",
	Usage: "target commitment: processed, confirmed or finalized (overrides configuration)",
}

// Debug is a flag for commands that allow debug logging.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// Common is the set of flags shared by all the commands talking to a node.
var Common = append([]cli.Flag{ConfigFile, Commitment, Debug}, RPC...)

var errNoEndpoint = errors.New("no RPC endpoint specified, use option '--" + RPCEndpointFlag + "' or '-r' or configuration file")

// GetTimeoutContext returns a context.Context with the default or a user-set timeout.
func GetTimeoutContext(ctx *cli.Context) (context.Context, func()) {
	dur := ctx.Duration("timeout")
	if dur == 0 {
		dur = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), dur)
}

// GetConfigFromContext loads configuration file (if given) and applies
// command line overrides.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	var (
		cfg = config.Default()
		err error
	)
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		cfg, err = config.LoadFile(configFile)
		if err != nil {
			return config.Config{}, err
		}
	}
	if ep := ctx.String(RPCEndpointFlag); ep != "" {
		cfg.RPC.Endpoint = ep
		// Websocket endpoint from the file (or the default one) belongs
		// to some other node.
		cfg.RPC.WSEndpoint, err = WSEndpointFor(ep)
		if err != nil {
			return config.Config{}, err
		}
	}
	if ep := ctx.String(WSEndpointFlag); ep != "" {
		cfg.RPC.WSEndpoint = ep
	}
	if c := ctx.String("commitment"); c != "" {
		cfg.Confirmation.Commitment, err = solrpc.ParseCommitment(c)
		if err != nil {
			return config.Config{}, err
		}
	}
	if len(cfg.RPC.Endpoint) == 0 {
		return config.Config{}, errNoEndpoint
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// WSEndpointFor returns websocket endpoint of the node serving HTTP RPC at
// the given address. Nodes listen for websocket connections on the next
// port if the port is given explicitly and on the same one otherwise.
func WSEndpointFor(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid RPC endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid RPC endpoint scheme %q", u.Scheme)
	}
	if p := u.Port(); p != "" {
		port, err := strconv.ParseUint(p, 10, 16)
		if err != nil || port == 65535 {
			return "", fmt.Errorf("invalid RPC endpoint port %q", p)
		}
		u.Host = net.JoinHostPort(u.Hostname(), strconv.FormatUint(port+1, 10))
	}
	return u.String(), nil
}

// ClientOptions converts RPC configuration into client options.
func ClientOptions(cfg config.RPC, log *zap.Logger) rpcclient.Options {
	return rpcclient.Options{
		DialTimeout:       cfg.DialTimeout,
		RequestTimeout:    cfg.RequestTimeout,
		MaxConnsPerHost:   cfg.MaxConnsPerHost,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Logger:            log,
	}
}

// GetRPCClient returns an RPC client instance for the given configuration.
func GetRPCClient(gctx context.Context, cfg config.RPC, log *zap.Logger) (*rpcclient.Client, cli.ExitCoder) {
	if len(cfg.Endpoint) == 0 {
		return nil, cli.NewExitError(errNoEndpoint, 1)
	}
	c, err := rpcclient.New(gctx, cfg.Endpoint, ClientOptions(cfg, log))
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	return c, nil
}

// GetWSClient returns a websocket client for the given configuration or nil
// if there is no websocket endpoint configured.
func GetWSClient(gctx context.Context, cfg config.RPC, log *zap.Logger) (*rpcclient.WSClient, cli.ExitCoder) {
	if len(cfg.WSEndpoint) == 0 {
		return nil, nil
	}
	c, err := rpcclient.NewWS(gctx, cfg.WSEndpoint, ClientOptions(cfg, log))
	if err != nil {
		return nil, cli.NewExitError(fmt.Errorf("websocket connection: %w", err), 1)
	}
	return c, nil
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir and a file for logging.
func HandleLoggingParams(debug bool, cfg config.Logger) (*zap.Logger, *zap.AtomicLevel, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	if cfg.LogEncoding != "" {
		cc.Encoding = cfg.LogEncoding
	}
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if logPath := cfg.LogPath; logPath != "" {
		if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("could not create dir for logger: %w", err)
		}
		cc.OutputPaths = []string{logPath}
	}

	log, err := cc.Build()
	return log, &cc.Level, err
}
