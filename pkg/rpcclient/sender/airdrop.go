package sender

import (
	"context"

	"github.com/nspcc-dev/soltx/pkg/rpcclient/confirm"
	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/nspcc-dev/soltx/pkg/solrpc/result"
	"github.com/nspcc-dev/soltx/pkg/util"
)

// AirdropRPC is an RPC client able to request airdrops.
type AirdropRPC interface {
	GetLatestBlockhash(ctx context.Context, commitment solrpc.Commitment) (*result.LatestBlockhash, error)
	RequestAirdrop(ctx context.Context, addr util.PublicKey, lamports uint64, commitment solrpc.Commitment) (util.Signature, error)
}

// Airdrop requests the given amount of lamports to be transferred to addr
// (only test networks support it) and waits for the airdrop transaction to
// reach the commitment. The transaction is never rebroadcasted. Block height
// taken before the request is used as the last valid one, so strategies can
// include block height expiry.
func Airdrop(ctx context.Context, rpc AirdropRPC, engine *confirm.Engine, addr util.PublicKey, lamports uint64, commitment solrpc.Commitment, strategies []confirm.Strategy) (util.Signature, error) {
	bh, err := rpc.GetLatestBlockhash(ctx, commitment)
	if err != nil {
		return util.Signature{}, err
	}
	sig, err := rpc.RequestAirdrop(ctx, addr, lamports, commitment)
	if err != nil {
		return util.Signature{}, err
	}
	out := engine.Confirm(ctx, &confirm.Context{
		Signature:            sig,
		Commitment:           commitment,
		LastValidBlockHeight: bh.Value.LastValidBlockHeight,
	}, strategies)
	return sig, outcomeError(out, nil)
}
