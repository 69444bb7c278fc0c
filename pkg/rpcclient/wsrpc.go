package rpcclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/solrpc/result"
	"github.com/nspcc-dev/soltx/pkg/util"
)

// SignatureSubscription is a typed signatureSubscribe subscription.
type SignatureSubscription struct {
	*Subscription
}

// SubscribeSignature subscribes to the status of the given transaction
// signature, the node sends a notification once the transaction reaches the
// commitment (and closes the subscription on its side after that).
func (c *WSClient) SubscribeSignature(ctx context.Context, sig util.Signature, commitment solrpc.Commitment) (*SignatureSubscription, error) {
	params := []any{sig.String()}
	if commitment != "" {
		params = append(params, solrpc.CommitmentConfig{Commitment: commitment})
	}
	sub, err := c.Subscribe(ctx, "signatureSubscribe", "signatureUnsubscribe", params)
	if err != nil {
		return nil, err
	}
	return &SignatureSubscription{sub}, nil
}

// Next returns the next decoded signature notification.
func (s *SignatureSubscription) Next(ctx context.Context) (*result.SignatureNotification, error) {
	raw, err := s.Subscription.Next(ctx)
	if err != nil {
		return nil, err
	}
	n := new(result.SignatureNotification)
	if err := json.Unmarshal(raw, n); err != nil {
		return nil, transportErr(fmt.Errorf("bad signature notification: %w", err))
	}
	return n, nil
}

// SubscribeSlots subscribes to slot updates, it's mostly useful as a liveness
// feed.
func (c *WSClient) SubscribeSlots(ctx context.Context) (*Subscription, error) {
	return c.Subscribe(ctx, "slotSubscribe", "slotUnsubscribe", nil)
}
