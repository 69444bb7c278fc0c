package confirm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nspcc-dev/soltx/pkg/rpcclient"
	"go.uber.org/zap"
)

// SignatureSubscription is a confirming strategy based on signature
// notifications. Once the subscription is active it also checks the
// signature status, the transaction could've landed before that.
type SignatureSubscription struct {
	src SignatureSource
	log *zap.Logger
}

// SignatureStatusPoller is a confirming strategy that polls signature status,
// it's suitable for clients that have no websocket connection.
type SignatureStatusPoller struct {
	rpc SignatureStatusGetter
	cfg PollConfig
}

// NewSignatureSubscription creates a signature subscription strategy. Logger
// is optional.
func NewSignatureSubscription(src SignatureSource, log *zap.Logger) *SignatureSubscription {
	if log == nil {
		log = zap.NewNop()
	}
	return &SignatureSubscription{src: src, log: log}
}

// Name implements the Strategy interface.
func (s *SignatureSubscription) Name() string { return "signature-subscription" }

// Kind implements the Strategy interface.
func (s *SignatureSubscription) Kind() Kind { return Confirming }

// Run implements the Strategy interface.
func (s *SignatureSubscription) Run(ctx context.Context, c *Context) Outcome {
	var commitment = c.commitment()

	sub, err := s.src.SubscribeSignature(ctx, c.Signature, commitment)
	if err != nil {
		if ctx.Err() != nil {
			return cancelledOutcome(ctx)
		}
		return failed(err)
	}
	defer sub.Unsubscribe()

	out, done, err := checkStatus(ctx, s.src, c)
	switch {
	case ctx.Err() != nil:
		return cancelledOutcome(ctx)
	case err != nil:
		s.log.Debug("signature status check failed",
			zap.Stringer("signature", c.Signature),
			zap.Error(err))
	case done:
		return out
	}

	for {
		n, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return cancelledOutcome(ctx)
			}
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("%w: signature subscription closed", rpcclient.ErrTransport)
			}
			return failed(err)
		}
		if n.Received {
			continue
		}
		if n.Failed() {
			return txFailed(c.Signature, n.Context.Slot, n.Err)
		}
		return confirmed(commitment, n.Context.Slot)
	}
}

// NewSignatureStatusPoller creates a polling signature strategy.
func NewSignatureStatusPoller(rpc SignatureStatusGetter, cfg PollConfig) *SignatureStatusPoller {
	return &SignatureStatusPoller{rpc: rpc, cfg: cfg.withDefaults()}
}

// Name implements the Strategy interface.
func (s *SignatureStatusPoller) Name() string { return "signature-status-poller" }

// Kind implements the Strategy interface.
func (s *SignatureStatusPoller) Kind() Kind { return Confirming }

// Run implements the Strategy interface.
func (s *SignatureStatusPoller) Run(ctx context.Context, c *Context) Outcome {
	return s.cfg.poll(ctx, s.Name(), func(ctx context.Context) (Outcome, bool, error) {
		return checkStatus(ctx, s.rpc, c)
	})
}

// checkStatus fetches the signature status once. Statuses below the target
// commitment are not a verdict, execution errors are reported only at the
// target commitment.
func checkStatus(ctx context.Context, rpc SignatureStatusGetter, c *Context) (Outcome, bool, error) {
	res, err := rpc.GetSignatureStatuses(ctx, false, c.Signature)
	if err != nil {
		return Outcome{}, false, err
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return Outcome{}, false, nil
	}
	st := res.Value[0]
	if !st.Reached(c.commitment()) {
		return Outcome{}, false, nil
	}
	if st.Failed() {
		return txFailed(c.Signature, st.Slot, st.Err), true, nil
	}
	return confirmed(c.commitment(), st.Slot), true, nil
}
