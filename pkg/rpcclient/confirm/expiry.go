package confirm

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// BlockHeightExpiry is an expiring strategy that polls block height until it
// exceeds the last valid block height of the transaction.
type BlockHeightExpiry struct {
	rpc BlockHeightGetter
	cfg PollConfig
}

// NonceInvalidation is an expiring strategy for durable nonce transactions,
// it polls the nonce account until its value differs from the one used by
// the transaction. A changed nonce doesn't prove the transaction hasn't
// landed (it advances the nonce itself), so this strategy is only usable
// along with a confirming one.
type NonceInvalidation struct {
	rpc NonceGetter
	cfg PollConfig
}

// Timeout is an expiring strategy that gives up after the given time. It's
// used for transactions that have no other expiry data.
type Timeout struct {
	d     time.Duration
	clock clock.Clock
}

// NewBlockHeightExpiry creates a block height expiry strategy.
func NewBlockHeightExpiry(rpc BlockHeightGetter, cfg PollConfig) *BlockHeightExpiry {
	return &BlockHeightExpiry{rpc: rpc, cfg: cfg.withDefaults()}
}

// Name implements the Strategy interface.
func (s *BlockHeightExpiry) Name() string { return "block-height-expiry" }

// Kind implements the Strategy interface.
func (s *BlockHeightExpiry) Kind() Kind { return Expiring }

// Run implements the Strategy interface.
func (s *BlockHeightExpiry) Run(ctx context.Context, c *Context) Outcome {
	if c.LastValidBlockHeight == 0 {
		return failed(errors.New("no last valid block height"))
	}
	var last uint64
	out := s.cfg.poll(ctx, s.Name(), func(ctx context.Context) (Outcome, bool, error) {
		h, err := s.rpc.GetBlockHeight(ctx, c.commitment())
		if err != nil {
			return Outcome{}, false, err
		}
		last = h
		s.cfg.Logger.Debug("block height polled",
			zap.Stringer("signature", c.Signature),
			zap.Uint64("height", h),
			zap.Uint64("lastValid", c.LastValidBlockHeight))
		if h > c.LastValidBlockHeight {
			return Outcome{Status: Expired, Reason: ErrBlockHeightExceeded}, true, nil
		}
		return Outcome{}, false, nil
	})
	out.Height = last
	return out
}

// NewNonceInvalidation creates a nonce invalidation strategy.
func NewNonceInvalidation(rpc NonceGetter, cfg PollConfig) *NonceInvalidation {
	return &NonceInvalidation{rpc: rpc, cfg: cfg.withDefaults()}
}

// Name implements the Strategy interface.
func (s *NonceInvalidation) Name() string { return "nonce-invalidation" }

// Kind implements the Strategy interface.
func (s *NonceInvalidation) Kind() Kind { return Expiring }

// Run implements the Strategy interface.
func (s *NonceInvalidation) Run(ctx context.Context, c *Context) Outcome {
	if c.Nonce == nil {
		return failed(errors.New("no nonce info"))
	}
	var last string
	out := s.cfg.poll(ctx, s.Name(), func(ctx context.Context) (Outcome, bool, error) {
		v, err := s.rpc.GetNonce(ctx, c.Nonce.Account, c.commitment())
		if err != nil {
			return Outcome{}, false, err
		}
		last = v
		if v != c.Nonce.Value {
			s.cfg.Logger.Debug("nonce advanced",
				zap.Stringer("signature", c.Signature),
				zap.String("expected", c.Nonce.Value),
				zap.String("actual", v))
			return Outcome{Status: Expired, Reason: ErrNonceInvalidated}, true, nil
		}
		return Outcome{}, false, nil
	})
	out.Nonce = last
	return out
}

// NewTimeout creates a Timeout strategy, clk is optional.
func NewTimeout(d time.Duration, clk clock.Clock) *Timeout {
	if clk == nil {
		clk = clock.New()
	}
	return &Timeout{d: d, clock: clk}
}

// Name implements the Strategy interface.
func (s *Timeout) Name() string { return "timeout" }

// Kind implements the Strategy interface.
func (s *Timeout) Kind() Kind { return Expiring }

// Run implements the Strategy interface.
func (s *Timeout) Run(ctx context.Context, c *Context) Outcome {
	timer := s.clock.Timer(s.d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return cancelledOutcome(ctx)
	case <-timer.C:
		return Outcome{Status: Expired, Reason: ErrTimeout}
	}
}

// BlockHeightStrategies returns the standard strategy set for transactions
// with recent blockhash: the given confirming strategy raced against block
// height expiry.
func BlockHeightStrategies(confirming Strategy, rpc BlockHeightGetter, cfg PollConfig) ([]Strategy, error) {
	if confirming == nil || confirming.Kind() != Confirming {
		return nil, ErrNoConfirmingStrategy
	}
	return []Strategy{confirming, NewBlockHeightExpiry(rpc, cfg)}, nil
}

// DurableNonceStrategies returns the standard strategy set for durable nonce
// transactions: the given confirming strategy raced against nonce
// invalidation.
func DurableNonceStrategies(confirming Strategy, rpc NonceGetter, cfg PollConfig) ([]Strategy, error) {
	if confirming == nil || confirming.Kind() != Confirming {
		return nil, ErrNoConfirmingStrategy
	}
	return []Strategy{confirming, NewNonceInvalidation(rpc, cfg)}, nil
}
