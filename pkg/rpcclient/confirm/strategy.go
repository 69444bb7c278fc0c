package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nspcc-dev/soltx/pkg/rpcclient"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/solrpc/result"
	"github.com/nspcc-dev/soltx/pkg/util"
	"go.uber.org/zap"
)

const (
	// DefaultPollRetryCount is a threshold for a number of subsequent failed
	// polls. If a polling strategy fails to get the data DefaultPollRetryCount
	// times in a row, it gives up with Failed outcome.
	DefaultPollRetryCount = 3
	// DefaultPollInterval is the default interval between polls, about a
	// slot time.
	DefaultPollInterval = 400 * time.Millisecond
)

// Kind tells what a strategy can prove.
type Kind byte

const (
	// Confirming strategies observe the transaction itself and can commit
	// Confirmed.
	Confirming Kind = iota
	// Expiring strategies can only tell that the transaction can't land
	// anymore.
	Expiring
)

type (
	// Strategy is a single source of verdict for the confirmation race.
	Strategy interface {
		// Name is used for logging and reporting.
		Name() string
		Kind() Kind
		// Run blocks until there is a verdict or ctx is done (Cancelled
		// outcome is returned then). It must not have any side effects after
		// ctx is done.
		Run(ctx context.Context, c *Context) Outcome
	}

	// SignatureStream is a stream of signature notifications.
	SignatureStream interface {
		Next(ctx context.Context) (*result.SignatureNotification, error)
		Unsubscribe()
	}

	// SignatureStatusGetter is an RPC client able to fetch signature statuses.
	SignatureStatusGetter interface {
		GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...util.Signature) (*result.SignatureStatuses, error)
	}

	// SignatureSource is an RPC client with signature subscriptions.
	SignatureSource interface {
		SignatureStatusGetter
		SubscribeSignature(ctx context.Context, sig util.Signature, commitment solrpc.Commitment) (SignatureStream, error)
	}

	// BlockHeightGetter is an RPC client able to fetch block height.
	BlockHeightGetter interface {
		GetBlockHeight(ctx context.Context, commitment solrpc.Commitment) (uint64, error)
	}

	// NonceGetter is an RPC client able to fetch durable nonce values.
	NonceGetter interface {
		GetNonce(ctx context.Context, addr util.PublicKey, commitment solrpc.Commitment) (string, error)
	}

	// PollConfig is a configuration of polling strategies.
	PollConfig struct {
		// PollInterval is a time interval between subsequent polls,
		// DefaultPollInterval if not set.
		PollInterval time.Duration
		// RetryCount is the number of subsequent transport failures a
		// strategy tolerates, DefaultPollRetryCount if not set.
		RetryCount int
		// Clock is used for poll timers, wall clock if not set.
		Clock clock.Clock
		// Logger is used for absorbed failures.
		Logger *zap.Logger
	}
)

// WSSource makes WSClient usable as a SignatureSource.
type WSSource struct {
	*rpcclient.WSClient
}

// SubscribeSignature implements the SignatureSource interface.
func (w WSSource) SubscribeSignature(ctx context.Context, sig util.Signature, commitment solrpc.Commitment) (SignatureStream, error) {
	sub, err := w.WSClient.SubscribeSignature(ctx, sig, commitment)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func (p PollConfig) withDefaults() PollConfig {
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.RetryCount <= 0 {
		p.RetryCount = DefaultPollRetryCount
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	return p
}

// checkFunc makes a single poll. It returns true with the outcome if there
// is a verdict.
type checkFunc func(ctx context.Context) (Outcome, bool, error)

// poll runs check immediately and then every PollInterval until there is a
// verdict. Transport failures are absorbed up to RetryCount in a row, any
// other error ends polling with Failed outcome.
func (p PollConfig) poll(ctx context.Context, name string, check checkFunc) Outcome {
	var failures int
	for {
		out, done, err := check(ctx)
		switch {
		case ctx.Err() != nil:
			return cancelledOutcome(ctx)
		case err != nil && transient(err):
			failures++
			p.Logger.Warn("poll failed",
				zap.String("strategy", name),
				zap.Int("attempt", failures),
				zap.Error(err))
			if failures >= p.RetryCount {
				return failed(fmt.Errorf("%d polls failed in a row: %w", failures, err))
			}
		case err != nil:
			return failed(err)
		case done:
			return out
		default:
			failures = 0
		}

		timer := p.Clock.Timer(p.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return cancelledOutcome(ctx)
		case <-timer.C:
		}
	}
}

// transient tells whether the error is a local or network failure that says
// nothing about the transaction.
func transient(err error) bool {
	return errors.Is(err, rpcclient.ErrTransport) || errors.Is(err, rpcclient.ErrCancelled)
}

func cancelledOutcome(ctx context.Context) Outcome {
	return Outcome{
		Status: Cancelled,
		Err:    fmt.Errorf("%w: %w", rpcclient.ErrCancelled, ctx.Err()),
	}
}

func isConfirming(strategies []Strategy) bool {
	for _, s := range strategies {
		if s != nil && s.Kind() == Confirming {
			return true
		}
	}
	return false
}
