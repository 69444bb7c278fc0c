/*
Package result contains decoded shapes of ledger node responses and
subscription notifications used by the client.
*/
package result

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
)

type (
	// Context is the slot at which a response was evaluated.
	Context struct {
		Slot uint64 `json:"slot"`
	}

	// SignatureStatus is a single getSignatureStatuses entry.
	SignatureStatus struct {
		Slot               uint64            `json:"slot"`
		Confirmations      *uint64           `json:"confirmations"`
		Err                json.RawMessage   `json:"err"`
		ConfirmationStatus solrpc.Commitment `json:"confirmationStatus"`
	}

	// SignatureStatuses is a getSignatureStatuses response, Value has one
	// entry per requested signature, unknown signatures are nil.
	SignatureStatuses struct {
		Context Context            `json:"context"`
		Value   []*SignatureStatus `json:"value"`
	}

	// SignatureNotification is a signatureSubscribe event payload.
	SignatureNotification struct {
		Context Context
		// Received is set for "receivedSignature" notifications that only
		// tell the transaction got into the node, no commitment is implied.
		Received bool
		// Err is the transaction execution error, if any.
		Err json.RawMessage
	}

	// Account is a ledger account as returned by getAccountInfo.
	Account struct {
		Lamports   uint64          `json:"lamports"`
		Owner      string          `json:"owner"`
		Data       json.RawMessage `json:"data"`
		Executable bool            `json:"executable"`
		RentEpoch  json.Number     `json:"rentEpoch"`
	}

	// AccountInfo is a getAccountInfo response, Value is nil for missing
	// accounts.
	AccountInfo struct {
		Context Context  `json:"context"`
		Value   *Account `json:"value"`
	}

	// LatestBlockhash is a getLatestBlockhash response.
	LatestBlockhash struct {
		Context Context `json:"context"`
		Value   struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}

	// Version is a getVersion response.
	Version struct {
		Core       string `json:"solana-core"`
		FeatureSet uint32 `json:"feature-set"`
	}
)

type signatureNotificationAux struct {
	Context Context         `json:"context"`
	Value   json.RawMessage `json:"value"`
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (n *SignatureNotification) UnmarshalJSON(data []byte) error {
	aux := new(signatureNotificationAux)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	n.Context = aux.Context
	var received string
	if json.Unmarshal(aux.Value, &received) == nil {
		if received != "receivedSignature" {
			return fmt.Errorf("unexpected signature notification value %q", received)
		}
		n.Received = true
		return nil
	}
	var value struct {
		Err json.RawMessage `json:"err"`
	}
	if err := json.Unmarshal(aux.Value, &value); err != nil {
		return fmt.Errorf("bad signature notification value: %w", err)
	}
	n.Err = value.Err
	return nil
}

// Failed returns true if the notification reports a transaction execution
// error.
func (n *SignatureNotification) Failed() bool {
	return !solrpc.IsNull(n.Err)
}

// Failed returns true if the status reports a transaction execution error.
func (s *SignatureStatus) Failed() bool {
	return !solrpc.IsNull(s.Err)
}

// Reached returns true if the status is at least at the target commitment.
// Nodes that don't report confirmationStatus are treated as "processed"
// unless confirmations are nil (which means the transaction is rooted).
func (s *SignatureStatus) Reached(target solrpc.Commitment) bool {
	status := s.ConfirmationStatus
	if status == "" {
		status = solrpc.Processed
		if s.Confirmations == nil {
			status = solrpc.Finalized
		}
	}
	return status.Covers(target)
}

// ErrNotBase64 is returned from DecodeData for accounts not fetched with
// base64 encoding.
var ErrNotBase64 = errors.New("account data is not base64-encoded")

// DecodeData decodes account data returned as `["<data>", "base64"]`.
func (a *Account) DecodeData() ([]byte, error) {
	var pair []string
	if err := json.Unmarshal(a.Data, &pair); err != nil || len(pair) != 2 {
		return nil, ErrNotBase64
	}
	if pair[1] != solrpc.EncodingBase64 {
		return nil, ErrNotBase64
	}
	return base64.StdEncoding.DecodeString(pair[0])
}
