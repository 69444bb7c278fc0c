package confirm

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/util"
)

var (
	// ErrBlockHeightExceeded is the Expired reason for transactions whose
	// last valid block height has passed.
	ErrBlockHeightExceeded = errors.New("block height exceeded")
	// ErrNonceInvalidated is the Expired reason for durable nonce
	// transactions whose nonce has been advanced.
	ErrNonceInvalidated = errors.New("nonce invalidated")
	// ErrTimeout is the Expired reason for Timeout strategy.
	ErrTimeout = errors.New("confirmation timed out")
	// ErrNoConfirmingStrategy is returned for strategy sets that can't prove
	// the transaction has landed.
	ErrNoConfirmingStrategy = errors.New("no confirming strategy in the set")
	// ErrNoVerdict is the Failed outcome error when every strategy has
	// ended without producing anything meaningful.
	ErrNoVerdict = errors.New("all strategies ended without verdict")
)

// Status is the tag of the race outcome.
type Status byte

// Outcome statuses.
const (
	// Confirmed means the transaction has reached the target commitment.
	Confirmed Status = iota + 1
	// Expired means the transaction can't land anymore, Reason tells why.
	Expired
	// Failed is a transport, remote or transaction execution failure.
	Failed
	// Cancelled means the caller's context is done.
	Cancelled
)

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Confirmed:
		return "confirmed"
	case Expired:
		return "expired"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of a confirmation race (or of a single strategy).
type Outcome struct {
	Status Status
	// Signature of the transaction, set by Engine.
	Signature util.Signature
	// Strategy is the name of the strategy that produced the outcome.
	Strategy string

	// Commitment reached (Confirmed only).
	Commitment solrpc.Commitment
	// Slot the transaction was observed at (Confirmed and failed
	// transactions), zero if unknown.
	Slot uint64

	// Reason is ErrBlockHeightExceeded, ErrNonceInvalidated or ErrTimeout
	// for Expired.
	Reason error
	// Err is the failure for Failed and the context error for Cancelled.
	Err error

	// Height is the last observed block height, zero if not polled.
	Height uint64
	// Nonce is the last observed nonce value, empty if not polled.
	Nonce string
}

// TransactionError is returned when the ledger has executed the transaction
// and reported an execution error. It's authoritative, resending the same
// transaction won't help.
type TransactionError struct {
	Signature util.Signature
	Slot      uint64
	// Err is the raw error object reported by the node.
	Err json.RawMessage
}

// Error implements the error interface.
func (e *TransactionError) Error() string {
	return fmt.Sprintf("transaction %s failed at slot %d: %s", e.Signature, e.Slot, string(e.Err))
}

func confirmed(commitment solrpc.Commitment, slot uint64) Outcome {
	return Outcome{Status: Confirmed, Commitment: commitment, Slot: slot}
}

func failed(err error) Outcome {
	return Outcome{Status: Failed, Err: err}
}

func txFailed(sig util.Signature, slot uint64, txErr json.RawMessage) Outcome {
	return Outcome{
		Status: Failed,
		Slot:   slot,
		Err:    &TransactionError{Signature: sig, Slot: slot, Err: txErr},
	}
}
