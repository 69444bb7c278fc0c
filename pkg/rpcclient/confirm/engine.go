/*
Package confirm implements transaction confirmation. Engine races a set of
strategies against each other: confirming ones (signature subscription or
signature status polling) and expiring ones (block height and durable nonce
checks). The first authoritative verdict wins, the rest are cancelled.
*/
package confirm

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/util"
	"go.uber.org/zap"
)

// DefaultMemoSize is the default number of confirmed signatures remembered
// by Engine.
const DefaultMemoSize = 1024

// EngineOptions are Engine parameters, all of them are optional.
type EngineOptions struct {
	// MemoSize is the number of confirmed signatures to remember,
	// DefaultMemoSize if zero, negative value disables memo.
	MemoSize int
	// Statuses is used to double-check the transaction before committing
	// Expired outcome. Nothing is checked if it's nil.
	Statuses SignatureStatusGetter
	Logger   *zap.Logger
}

// Engine runs confirmation races. It's safe for concurrent use, races are
// independent except for the shared memo of confirmed signatures.
type Engine struct {
	memo     *lru.Cache
	statuses SignatureStatusGetter
	log      *zap.Logger
}

type memoEntry struct {
	commitment solrpc.Commitment
	slot       uint64
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		statuses: opts.Statuses,
		log:      opts.Logger,
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if opts.MemoSize == 0 {
		opts.MemoSize = DefaultMemoSize
	}
	if opts.MemoSize > 0 {
		e.memo, _ = lru.New(opts.MemoSize) // Only fails for non-positive sizes.
	}
	return e
}

// Confirm starts all strategies concurrently and returns the first
// authoritative outcome:
//   - Confirmed as soon as any confirming strategy observes the transaction
//     at the target commitment;
//   - Expired when an expiring strategy proves the transaction can't land
//     (and it's not found to be landed by a status check, if configured);
//   - Failed immediately for transaction execution and remote errors, while
//     transport failures just take the strategy out of the race; if every
//     strategy is out the last failure is returned;
//   - Cancelled if ctx is done.
//
// Strategies that lose are cancelled and Confirm doesn't return until all of
// them have exited. The set must contain at least one confirming strategy,
// otherwise Failed outcome with ErrNoConfirmingStrategy is returned.
func (e *Engine) Confirm(ctx context.Context, c *Context, strategies []Strategy) Outcome {
	out := e.confirm(ctx, c, strategies)
	out.Signature = c.Signature
	observeOutcome(out)
	e.log.Debug("confirmation race finished",
		zap.Stringer("signature", c.Signature),
		zap.Stringer("outcome", out.Status),
		zap.String("strategy", out.Strategy),
		zap.NamedError("reason", out.Reason),
		zap.Error(out.Err))
	return out
}

func (e *Engine) confirm(ctx context.Context, c *Context, strategies []Strategy) Outcome {
	if err := c.Validate(); err != nil {
		return failed(err)
	}
	if !isConfirming(strategies) {
		return failed(ErrNoConfirmingStrategy)
	}
	if out, ok := e.remembered(c); ok {
		return out
	}
	if ctx.Err() != nil {
		return cancelledOutcome(ctx)
	}

	var (
		rctx, cancel = context.WithCancel(ctx)
		results      = make(chan Outcome, len(strategies))
		wg           sync.WaitGroup
		live         int
	)
	for _, s := range strategies {
		if s == nil {
			continue
		}
		live++
		wg.Add(1)
		go func(s Strategy) {
			defer wg.Done()
			out := s.Run(rctx, c)
			out.Strategy = s.Name()
			results <- out // Buffered, never blocks.
		}(s)
	}
	out := e.race(ctx, c, results, live)
	cancel()
	wg.Wait()

	if out.Status == Confirmed {
		e.remember(c.Signature, out)
	}
	return out
}

func (e *Engine) race(ctx context.Context, c *Context, results <-chan Outcome, live int) Outcome {
	var lastFailed *Outcome
	for live > 0 {
		select {
		case <-ctx.Done():
			return cancelledOutcome(ctx)
		case out := <-results:
			live--
			switch out.Status {
			case Confirmed:
				return out
			case Expired:
				verdict, final := e.recheck(ctx, c, out)
				if ctx.Err() != nil {
					return cancelledOutcome(ctx)
				}
				if final {
					return preferConfirmed(results, verdict)
				}
				e.log.Debug("transaction landed, waiting for commitment",
					zap.Stringer("signature", c.Signature),
					zap.String("strategy", out.Strategy))
			case Failed:
				if !transient(out.Err) {
					return preferConfirmed(results, out)
				}
				e.log.Warn("confirmation strategy failed",
					zap.Stringer("signature", c.Signature),
					zap.String("strategy", out.Strategy),
					zap.Error(out.Err))
				lastFailed = &out
			}
			// Strategy can also give up with Cancelled outcome, it's just
			// out of the race then.
		}
	}
	if ctx.Err() != nil {
		return cancelledOutcome(ctx)
	}
	if lastFailed != nil {
		return *lastFailed
	}
	return failed(ErrNoVerdict)
}

// recheck looks at the signature status of the transaction that is about to
// be declared expired. It returns false if the transaction has landed, but
// hasn't reached the target commitment yet.
func (e *Engine) recheck(ctx context.Context, c *Context, expired Outcome) (Outcome, bool) {
	if e.statuses == nil {
		return expired, true
	}
	res, err := e.statuses.GetSignatureStatuses(ctx, false, c.Signature)
	if err != nil {
		e.log.Debug("signature status recheck failed",
			zap.Stringer("signature", c.Signature),
			zap.Error(err))
		return expired, true
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return expired, true
	}
	var (
		st  = res.Value[0]
		out Outcome
	)
	switch {
	case st.Failed():
		out = txFailed(c.Signature, st.Slot, st.Err)
	case st.Reached(c.commitment()):
		out = confirmed(c.commitment(), st.Slot)
	default:
		return Outcome{}, false
	}
	out.Strategy = expired.Strategy
	out.Height = expired.Height
	out.Nonce = expired.Nonce
	return out, true
}

// preferConfirmed returns Confirmed outcome if some strategy has already
// reported it, out otherwise.
func preferConfirmed(results <-chan Outcome, out Outcome) Outcome {
	for {
		select {
		case o := <-results:
			if o.Status == Confirmed {
				return o
			}
		default:
			return out
		}
	}
}

func (e *Engine) remembered(c *Context) (Outcome, bool) {
	if e.memo == nil {
		return Outcome{}, false
	}
	v, ok := e.memo.Get(c.Signature)
	if !ok {
		return Outcome{}, false
	}
	m := v.(memoEntry)
	if !m.commitment.Covers(c.commitment()) {
		return Outcome{}, false
	}
	out := confirmed(m.commitment, m.slot)
	out.Strategy = "memo"
	return out, true
}

func (e *Engine) remember(sig util.Signature, out Outcome) {
	if e.memo == nil {
		return
	}
	if v, ok := e.memo.Get(sig); ok && v.(memoEntry).commitment.Covers(out.Commitment) {
		return
	}
	e.memo.Add(sig, memoEntry{commitment: out.Commitment, slot: out.Slot})
}
