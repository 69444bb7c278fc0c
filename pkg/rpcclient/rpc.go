package rpcclient

import (
	"context"
	"encoding/base64"

	"github.com/mr-tron/base58"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/solrpc/result"
	"github.com/nspcc-dev/soltx/pkg/util"
)

// Nonce account data layout: version (u32), state (u32), authority (32
// bytes), then the durable nonce value itself.
const (
	nonceValueOffset = 40
	nonceValueLength = 32
)

// SendOptions are the sendTransaction parameters.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment solrpc.Commitment
	// MaxRetries is the number of node-side rebroadcast attempts, node
	// default is used if nil.
	MaxRetries *uint
}

// GetVersion returns the version of the node software.
func (c *Client) GetVersion(ctx context.Context) (*result.Version, error) {
	var resp = new(result.Version)
	if err := c.Call(ctx, "getVersion", nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetBlockHeight returns the current block height of the node at the given
// commitment (node default if empty).
func (c *Client) GetBlockHeight(ctx context.Context, commitment solrpc.Commitment) (uint64, error) {
	var (
		params []any
		resp   uint64
	)
	if commitment != "" {
		params = []any{solrpc.CommitmentConfig{Commitment: commitment}}
	}
	if err := c.Call(ctx, "getBlockHeight", params, &resp); err != nil {
		return 0, err
	}
	return resp, nil
}

// GetLatestBlockhash returns the latest blockhash along with the last block
// height it's valid at.
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment solrpc.Commitment) (*result.LatestBlockhash, error) {
	var (
		params []any
		resp   = new(result.LatestBlockhash)
	)
	if commitment != "" {
		params = []any{solrpc.CommitmentConfig{Commitment: commitment}}
	}
	if err := c.Call(ctx, "getLatestBlockhash", params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetSignatureStatuses returns statuses of the given signatures. Only recent
// statuses are searched unless searchHistory is set.
func (c *Client) GetSignatureStatuses(ctx context.Context, searchHistory bool, sigs ...util.Signature) (*result.SignatureStatuses, error) {
	var (
		strs   = make([]string, len(sigs))
		resp   = new(result.SignatureStatuses)
		params []any
	)
	for i := range sigs {
		strs[i] = sigs[i].String()
	}
	params = append(params, strs)
	if searchHistory {
		params = append(params, solrpc.SignatureStatusesConfig{SearchTransactionHistory: true})
	}
	if err := c.Call(ctx, "getSignatureStatuses", params, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetAccountInfo returns the account stored at the given address.
func (c *Client) GetAccountInfo(ctx context.Context, addr util.PublicKey, cfg solrpc.AccountInfoConfig) (*result.AccountInfo, error) {
	var resp = new(result.AccountInfo)
	if cfg.Encoding == "" {
		cfg.Encoding = solrpc.EncodingBase64
	}
	if err := c.Call(ctx, "getAccountInfo", []any{addr.String(), cfg}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetNonce returns the current durable nonce value (base58 text) stored in
// the given nonce account.
func (c *Client) GetNonce(ctx context.Context, addr util.PublicKey, commitment solrpc.Commitment) (string, error) {
	info, err := c.GetAccountInfo(ctx, addr, solrpc.AccountInfoConfig{
		Commitment: commitment,
		Encoding:   solrpc.EncodingBase64,
		DataSlice:  &solrpc.DataSlice{Offset: nonceValueOffset, Length: nonceValueLength},
	})
	if err != nil {
		return "", err
	}
	if info.Value == nil {
		return "", ErrNonceAccountNotFound
	}
	data, err := info.Value.DecodeData()
	if err != nil {
		return "", transportErr(err)
	}
	if len(data) != nonceValueLength {
		return "", transportErr(ErrNoResult)
	}
	return base58.Encode(data), nil
}

// SendTransaction broadcasts the given signed wire-encoded transaction and
// returns its signature as reported by the node.
func (c *Client) SendTransaction(ctx context.Context, tx []byte, opts SendOptions) (util.Signature, error) {
	var (
		resp   util.Signature
		params = []any{
			base64.StdEncoding.EncodeToString(tx),
			solrpc.SendTransactionConfig{
				Encoding:            solrpc.EncodingBase64,
				SkipPreflight:       opts.SkipPreflight,
				PreflightCommitment: opts.PreflightCommitment,
				MaxRetries:          opts.MaxRetries,
			},
		}
	)
	if err := c.Call(ctx, "sendTransaction", params, &resp); err != nil {
		return util.Signature{}, err
	}
	return resp, nil
}

// RequestAirdrop asks the node to transfer the given amount of lamports to
// addr, it returns the signature of the airdrop transaction.
func (c *Client) RequestAirdrop(ctx context.Context, addr util.PublicKey, lamports uint64, commitment solrpc.Commitment) (util.Signature, error) {
	var (
		resp   util.Signature
		params = []any{addr.String(), lamports}
	)
	if commitment != "" {
		params = append(params, solrpc.CommitmentConfig{Commitment: commitment})
	}
	if err := c.Call(ctx, "requestAirdrop", params, &resp); err != nil {
		return util.Signature{}, err
	}
	return resp, nil
}
