/*
Package sender implements send-and-confirm logic. Sender broadcasts a signed
transaction, then keeps rebroadcasting it at a fixed interval while the
confirmation race is running.
*/
package sender

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/nspcc-dev/soltx/pkg/rpcclient"
	"github.com/nspcc-dev/soltx/pkg/rpcclient/confirm"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/util"
	"go.uber.org/zap"
)

// DefaultRebroadcastInterval is the default interval between transaction
// rebroadcasts.
const DefaultRebroadcastInterval = 2 * time.Second

type (
	// RPCSender is an RPC client able to send transactions.
	RPCSender interface {
		SendTransaction(ctx context.Context, tx []byte, opts rpcclient.SendOptions) (util.Signature, error)
	}

	// Options are Sender parameters, all of them are optional.
	Options struct {
		// RebroadcastInterval is the time between subsequent sends of the
		// same transaction, DefaultRebroadcastInterval if not set.
		RebroadcastInterval time.Duration
		// Send is passed to every sendTransaction request.
		Send rpcclient.SendOptions
		// Clock is used for the rebroadcast ticker, wall clock if not set.
		Clock  clock.Clock
		Logger *zap.Logger
	}

	// Sender sends transactions and waits for them to be confirmed.
	Sender struct {
		rpc    RPCSender
		engine *confirm.Engine
		opts   Options
		log    *zap.Logger
	}

	// ExpiredError is returned when the transaction can't land anymore, a
	// new one is to be built with fresh blockhash or nonce.
	ExpiredError struct {
		Signature util.Signature
		// Reason is one of confirm.ErrBlockHeightExceeded,
		// confirm.ErrNonceInvalidated and confirm.ErrTimeout.
		Reason error
		// Height is the last observed block height, zero if unknown.
		Height uint64
		// Nonce is the last observed nonce value, empty if unknown.
		Nonce string
	}

	// rebroadcastState is owned by the rebroadcast loop (or by
	// SendAndConfirm before the loop is started and after it's done).
	rebroadcastState struct {
		attempts   int
		succeeded  int
		lastSentAt time.Time
		firstErr   error
	}
)

// Error implements the error interface.
func (e *ExpiredError) Error() string {
	var s = fmt.Sprintf("transaction %s expired: %s", e.Signature, e.Reason)
	if e.Height != 0 {
		s += fmt.Sprintf(" (height %d)", e.Height)
	}
	if e.Nonce != "" {
		s += fmt.Sprintf(" (nonce %s)", e.Nonce)
	}
	return s
}

// Unwrap returns the reason.
func (e *ExpiredError) Unwrap() error {
	return e.Reason
}

// New creates a Sender using the given RPC client and confirmation engine.
func New(rpc RPCSender, engine *confirm.Engine, opts Options) *Sender {
	if opts.RebroadcastInterval <= 0 {
		opts.RebroadcastInterval = DefaultRebroadcastInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Sender{
		rpc:    rpc,
		engine: engine,
		opts:   opts,
		log:    opts.Logger,
	}
}

// SendAndConfirm sends the given signed wire-encoded transaction and
// resends it every RebroadcastInterval while strategies are racing to
// confirm it. Rebroadcasting stops as soon as the race is finished. Nil
// error is only returned for Confirmed outcome, Expired outcome is returned
// along with *ExpiredError, Cancelled with an error wrapping
// rpcclient.ErrCancelled.
//
// Remote error returned for the first send (like preflight failure) is
// returned immediately, failed rebroadcasts are just logged. If no send has
// succeeded and the race has failed, the first send error is returned.
func (s *Sender) SendAndConfirm(ctx context.Context, tx []byte, c *confirm.Context, strategies []confirm.Strategy) (confirm.Outcome, error) {
	var (
		rctx, cancel = context.WithCancel(ctx)
		st           = new(rebroadcastState)
		ticker       = s.opts.Clock.Ticker(s.opts.RebroadcastInterval)
		wg           sync.WaitGroup
	)
	defer cancel()
	defer ticker.Stop()

	if err := s.send(rctx, tx, c, st); err != nil && isRemote(err) {
		out := confirm.Outcome{Status: confirm.Failed, Signature: c.Signature, Err: err}
		return out, err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.rebroadcast(rctx, ticker, tx, c, st)
	}()
	out := s.engine.Confirm(ctx, c, strategies)
	cancel()
	wg.Wait()

	s.log.Debug("send and confirm finished",
		zap.Stringer("signature", c.Signature),
		zap.Stringer("outcome", out.Status),
		zap.Int("attempts", st.attempts),
		zap.Int("succeeded", st.succeeded),
		zap.Time("lastSentAt", st.lastSentAt))
	return out, outcomeError(out, st)
}

func (s *Sender) rebroadcast(ctx context.Context, ticker *clock.Ticker, tx []byte, c *confirm.Context, st *rebroadcastState) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			_ = s.send(ctx, tx, c, st)
		}
	}
}

func (s *Sender) send(ctx context.Context, tx []byte, c *confirm.Context, st *rebroadcastState) error {
	st.attempts++
	sig, err := s.rpc.SendTransaction(ctx, tx, s.opts.Send)
	if err != nil {
		if ctx.Err() != nil {
			// The race is over, it's not a failure.
			return err
		}
		observeAttempt(false)
		if st.firstErr == nil {
			st.firstErr = err
		}
		s.log.Warn("failed to send transaction",
			zap.Stringer("signature", c.Signature),
			zap.Int("attempt", st.attempts),
			zap.Error(err))
		return err
	}
	observeAttempt(true)
	st.succeeded++
	st.lastSentAt = s.opts.Clock.Now()
	if sig != c.Signature {
		s.log.Warn("node returned unexpected signature",
			zap.Stringer("expected", c.Signature),
			zap.Stringer("actual", sig))
	}
	s.log.Debug("transaction sent",
		zap.Stringer("signature", c.Signature),
		zap.Int("attempt", st.attempts))
	return nil
}

// OutcomeError converts the race outcome to an error the same way
// SendAndConfirm does it, nil is returned for Confirmed outcome only.
func OutcomeError(out confirm.Outcome) error {
	return outcomeError(out, nil)
}

// outcomeError maps the race outcome to the error returned to the caller.
func outcomeError(out confirm.Outcome, st *rebroadcastState) error {
	switch out.Status {
	case confirm.Confirmed:
		return nil
	case confirm.Expired:
		return &ExpiredError{
			Signature: out.Signature,
			Reason:    out.Reason,
			Height:    out.Height,
			Nonce:     out.Nonce,
		}
	case confirm.Failed:
		if st != nil && st.succeeded == 0 && st.firstErr != nil && errors.Is(out.Err, rpcclient.ErrTransport) {
			return st.firstErr
		}
		return out.Err
	default:
		if out.Err != nil {
			return out.Err
		}
		return fmt.Errorf("unexpected outcome %s", out.Status)
	}
}

func isRemote(err error) bool {
	var remote *solrpc.Error
	return errors.As(err, &remote)
}
