package confirm

import (
	"errors"
	"fmt"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/util"
)

// Context describes a single submission attempt to be confirmed. It must not
// be changed after it's passed to Engine.Confirm.
type Context struct {
	Signature util.Signature
	// Commitment is the target commitment, confirmed if not set.
	Commitment solrpc.Commitment
	// LastValidBlockHeight is the last block height the transaction can be
	// included at, zero if unknown.
	LastValidBlockHeight uint64
	// Nonce is set for durable nonce transactions.
	Nonce *NonceInfo
}

// NonceInfo identifies the durable nonce a transaction was built against.
type NonceInfo struct {
	Account util.PublicKey
	// Value is the base58 nonce value used as the transaction blockhash.
	Value string
}

// commitment returns the target commitment.
func (c *Context) commitment() solrpc.Commitment {
	if c.Commitment == "" {
		return solrpc.Confirmed
	}
	return c.Commitment
}

// Validate checks the context for consistency.
func (c *Context) Validate() error {
	if c.Signature.IsZero() {
		return errors.New("empty signature")
	}
	if c.Commitment != "" && !c.Commitment.IsValid() {
		return fmt.Errorf("invalid commitment %q", c.Commitment)
	}
	if c.Nonce != nil && c.Nonce.Value == "" {
		return errors.New("empty nonce value")
	}
	return nil
}
