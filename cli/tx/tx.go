package tx

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/nspcc-dev/soltx/cli/options"
	"github.com/nspcc-dev/soltx/pkg/config"
	"github.com/nspcc-dev/soltx/pkg/rpcclient"
	"github.com/nspcc-dev/soltx/pkg/rpcclient/confirm"
	"github.com/nspcc-dev/soltx/pkg/rpcclient/sender"
	"github.com/nspcc-dev/soltx/pkg/services/metrics"
	"github.com/nspcc-dev/soltx/pkg/util"
	"github.com/urfave/cli"
	"go.uber.org/zap"
)

var (
	lastValidHeightFlag = cli.Uint64Flag{
		Name:  "last-valid-height",
		Usage: "last block height the transaction blockhash is valid at",
	}
	nonceAccountFlag = cli.StringFlag{
		Name:  "nonce-account",
		Usage: "durable nonce account address (requires --nonce)",
	}
	nonceFlag = cli.StringFlag{
		Name:  "nonce",
		Usage: "durable nonce value the transaction is built with (requires --nonce-account)",
	}
	expiryFlags = []cli.Flag{lastValidHeightFlag, nonceAccountFlag, nonceFlag}
)

// NewCommands returns 'tx' and 'airdrop' commands.
func NewCommands() []cli.Command {
	sendFlags := append([]cli.Flag{
		cli.StringFlag{
			Name:  "in, i",
			Usage: "file with base64-encoded signed transaction (stdin is used if not set)",
		},
	}, expiryFlags...)
	sendFlags = append(sendFlags, options.Common...)
	confirmFlags := append(append([]cli.Flag{}, expiryFlags...), options.Common...)
	return []cli.Command{{
		Name:  "tx",
		Usage: "send and confirm transactions",
		Subcommands: []cli.Command{
			{
				Name:      "send",
				Usage:     "send signed transaction and wait for it to be confirmed",
				UsageText: "soltx tx send [--in file] [--last-valid-height H | --nonce-account A --nonce V] [--config-file F]",
				Description: `Sends the given signed transaction and rebroadcasts it until it's either
   confirmed or expired. Expiry is tracked by block height if --last-valid-height
   is given, by durable nonce if --nonce-account and --nonce are given and by
   confirmation timeout from the configuration otherwise.`,
				Action: sendTx,
				Flags:  sendFlags,
			},
			{
				Name:      "confirm",
				Usage:     "wait for a transaction to be confirmed",
				UsageText: "soltx tx confirm SIGNATURE [--last-valid-height H | --nonce-account A --nonce V] [--config-file F]",
				Action:    confirmTx,
				Flags:     confirmFlags,
			},
			{
				Name:      "status",
				Usage:     "print transaction status",
				UsageText: "soltx tx status SIGNATURE [--config-file F]",
				Action:    txStatus,
				Flags:     options.Common,
			},
		},
	}, {
		Name:      "airdrop",
		Usage:     "request an airdrop (test networks only) and wait for it",
		UsageText: "soltx airdrop ADDRESS LAMPORTS [--config-file F]",
		Action:    airdrop,
		Flags:     options.Common,
	}}
}

// session is a set of components shared by all the commands.
type session struct {
	cfg    config.Config
	log    *zap.Logger
	rpc    *rpcclient.Client
	ws     *rpcclient.WSClient
	engine *confirm.Engine
	prom   *metrics.Service
}

// newSession creates a set of clients for the command. Websocket client is
// only created if withWS is set, it's optional: the session falls back to
// status polling if it can't connect.
func newSession(gctx context.Context, ctx *cli.Context, withWS bool) (*session, cli.ExitCoder) {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	log, _, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.Logger)
	if err != nil {
		return nil, cli.NewExitError(err, 1)
	}
	s := &session{
		cfg: cfg,
		log: log,
	}
	s.prom = metrics.NewPrometheusService(cfg.Prometheus, log)
	if err := s.prom.Start(); err != nil {
		_ = log.Sync()
		return nil, cli.NewExitError(err, 1)
	}
	var exitErr cli.ExitCoder
	s.rpc, exitErr = options.GetRPCClient(gctx, cfg.RPC, log.Named("rpc"))
	if exitErr != nil {
		s.close()
		return nil, exitErr
	}
	if withWS {
		s.ws, exitErr = options.GetWSClient(gctx, cfg.RPC, log.Named("ws"))
		if exitErr != nil {
			log.Warn("websocket is not available, polling signature status",
				zap.String("endpoint", cfg.RPC.WSEndpoint),
				zap.Error(exitErr))
		}
	}
	s.engine = confirm.NewEngine(confirm.EngineOptions{
		Statuses: s.rpc,
		Logger:   log.Named("confirm"),
	})
	return s, nil
}

func (s *session) close() {
	if s.ws != nil {
		s.ws.Close()
	}
	if s.rpc != nil {
		s.rpc.Close()
	}
	s.prom.ShutDown()
	_ = s.log.Sync()
}

func (s *session) pollConfig() confirm.PollConfig {
	return confirm.PollConfig{
		PollInterval: s.cfg.Confirmation.PollInterval,
		RetryCount:   s.cfg.Confirmation.PollRetryCount,
		Logger:       s.log.Named("confirm"),
	}
}

// confirming returns signature subscription strategy if websocket endpoint
// is configured and signature status poller otherwise.
func (s *session) confirming() confirm.Strategy {
	if s.ws != nil {
		return confirm.NewSignatureSubscription(confirm.WSSource{WSClient: s.ws}, s.log.Named("confirm"))
	}
	return confirm.NewSignatureStatusPoller(s.rpc, s.pollConfig())
}

// strategies returns strategy set suitable for the given transaction.
func (s *session) strategies(c *confirm.Context) ([]confirm.Strategy, error) {
	switch {
	case c.Nonce != nil:
		return confirm.DurableNonceStrategies(s.confirming(), s.rpc, s.pollConfig())
	case c.LastValidBlockHeight != 0:
		return confirm.BlockHeightStrategies(s.confirming(), s.rpc, s.pollConfig())
	default:
		return []confirm.Strategy{s.confirming(), confirm.NewTimeout(s.cfg.Confirmation.Timeout, nil)}, nil
	}
}

// getConfirmContext creates confirmation context from the expiry flags.
func getConfirmContext(ctx *cli.Context, sig util.Signature, cfg config.Config) (*confirm.Context, error) {
	var (
		c = &confirm.Context{
			Signature:            sig,
			Commitment:           cfg.Confirmation.Commitment,
			LastValidBlockHeight: ctx.Uint64(lastValidHeightFlag.Name),
		}
		nonceAcc = ctx.String(nonceAccountFlag.Name)
		nonce    = ctx.String(nonceFlag.Name)
	)
	if (nonceAcc == "") != (nonce == "") {
		return nil, errors.New("--nonce-account and --nonce must be used together")
	}
	if nonceAcc != "" {
		if c.LastValidBlockHeight != 0 {
			return nil, errors.New("--last-valid-height conflicts with durable nonce")
		}
		acc, err := util.PublicKeyDecodeString(nonceAcc)
		if err != nil {
			return nil, fmt.Errorf("invalid nonce account: %w", err)
		}
		c.Nonce = &confirm.NonceInfo{Account: acc, Value: nonce}
	}
	return c, c.Validate()
}

func readTransaction(ctx *cli.Context) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if in := ctx.String("in"); in != "" {
		data, err = os.ReadFile(in)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transaction: %w", err)
	}
	tx, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("transaction is not base64: %w", err)
	}
	return tx, nil
}

func signatureArg(ctx *cli.Context) (util.Signature, error) {
	args := ctx.Args()
	if len(args) == 0 {
		return util.Signature{}, errors.New("transaction signature is missing")
	}
	if len(args) > 1 {
		return util.Signature{}, errors.New("only one signature is accepted")
	}
	return util.SignatureDecodeString(args[0])
}

func sendTx(ctx *cli.Context) error {
	tx, err := readTransaction(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	sig, err := util.TransactionSignature(tx)
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid transaction: %w", err), 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	s, exitErr := newSession(gctx, ctx, true)
	if exitErr != nil {
		return exitErr
	}
	defer s.close()

	c, err := getConfirmContext(ctx, sig, s.cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	strategies, err := s.strategies(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	opts := sender.Options{
		RebroadcastInterval: s.cfg.Confirmation.RebroadcastInterval,
		Send: rpcclient.SendOptions{
			SkipPreflight:       s.cfg.Confirmation.SkipPreflight,
			PreflightCommitment: s.cfg.Confirmation.Commitment,
		},
		Logger: s.log.Named("sender"),
	}
	if s.cfg.Confirmation.MaxRetries > 0 {
		maxRetries := s.cfg.Confirmation.MaxRetries
		opts.Send.MaxRetries = &maxRetries
	}
	out, err := sender.New(s.rpc, s.engine, opts).SendAndConfirm(gctx, tx, c, strategies)
	dumpOutcome(ctx, out)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func confirmTx(ctx *cli.Context) error {
	sig, err := signatureArg(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	s, exitErr := newSession(gctx, ctx, true)
	if exitErr != nil {
		return exitErr
	}
	defer s.close()

	c, err := getConfirmContext(ctx, sig, s.cfg)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	strategies, err := s.strategies(c)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	out := s.engine.Confirm(gctx, c, strategies)
	dumpOutcome(ctx, out)
	if err := sender.OutcomeError(out); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func txStatus(ctx *cli.Context) error {
	sig, err := signatureArg(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	s, exitErr := newSession(gctx, ctx, false)
	if exitErr != nil {
		return exitErr
	}
	defer s.close()

	res, err := s.rpc.GetSignatureStatuses(gctx, true, sig)
	if err != nil {
		return cli.NewExitError(err, 1)
	}

	buf := bytes.NewBuffer(nil)
	// Ignore the errors below because `Write` to buffer doesn't return error.
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Signature:\t" + sig.String() + "\n"))
	if len(res.Value) == 0 || res.Value[0] == nil {
		_, _ = tw.Write([]byte("Found:\tfalse\n"))
	} else {
		st := res.Value[0]
		_, _ = tw.Write([]byte("Found:\ttrue\n"))
		_, _ = tw.Write([]byte("Slot:\t" + strconv.FormatUint(st.Slot, 10) + "\n"))
		_, _ = tw.Write([]byte("Commitment:\t" + string(st.ConfirmationStatus) + "\n"))
		if st.Confirmations != nil {
			_, _ = tw.Write([]byte("Confirmations:\t" + strconv.FormatUint(*st.Confirmations, 10) + "\n"))
		}
		_, _ = tw.Write([]byte(fmt.Sprintf("Success:\t%t\n", !st.Failed())))
		if st.Failed() {
			_, _ = tw.Write([]byte("Error:\t" + string(st.Err) + "\n"))
		}
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
	return nil
}

func airdrop(ctx *cli.Context) error {
	args := ctx.Args()
	if len(args) != 2 {
		return cli.NewExitError("address and amount of lamports are expected", 1)
	}
	addr, err := util.PublicKeyDecodeString(args[0])
	if err != nil {
		return cli.NewExitError(fmt.Errorf("invalid address: %w", err), 1)
	}
	lamports, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil || lamports == 0 {
		return cli.NewExitError(fmt.Sprintf("invalid amount: %s", args[1]), 1)
	}

	gctx, cancel := options.GetTimeoutContext(ctx)
	defer cancel()

	s, exitErr := newSession(gctx, ctx, true)
	if exitErr != nil {
		return exitErr
	}
	defer s.close()

	strategies, err := confirm.BlockHeightStrategies(s.confirming(), s.rpc, s.pollConfig())
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	sig, err := sender.Airdrop(gctx, s.rpc, s.engine, addr, lamports, s.cfg.Confirmation.Commitment, strategies)
	if !sig.IsZero() {
		fmt.Fprintln(ctx.App.Writer, sig.String())
	}
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}

func dumpOutcome(ctx *cli.Context, out confirm.Outcome) {
	buf := bytes.NewBuffer(nil)
	tw := tabwriter.NewWriter(buf, 0, 4, 4, '\t', 0)
	_, _ = tw.Write([]byte("Signature:\t" + out.Signature.String() + "\n"))
	_, _ = tw.Write([]byte("Outcome:\t" + out.Status.String() + "\n"))
	if out.Strategy != "" {
		_, _ = tw.Write([]byte("Strategy:\t" + out.Strategy + "\n"))
	}
	if out.Status == confirm.Confirmed {
		_, _ = tw.Write([]byte("Commitment:\t" + string(out.Commitment) + "\n"))
	}
	if out.Slot != 0 {
		_, _ = tw.Write([]byte("Slot:\t" + strconv.FormatUint(out.Slot, 10) + "\n"))
	}
	if out.Height != 0 {
		_, _ = tw.Write([]byte("BlockHeight:\t" + strconv.FormatUint(out.Height, 10) + "\n"))
	}
	if out.Nonce != "" {
		_, _ = tw.Write([]byte("Nonce:\t" + out.Nonce + "\n"))
	}
	if out.Reason != nil {
		_, _ = tw.Write([]byte("Reason:\t" + out.Reason.Error() + "\n"))
	}
	_ = tw.Flush()
	fmt.Fprint(ctx.App.Writer, buf.String())
}
