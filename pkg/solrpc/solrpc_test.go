package solrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommitmentCovers(t *testing.T) {
	require.True(t, Finalized.Covers(Confirmed))
	require.True(t, Confirmed.Covers(Confirmed))
	require.True(t, Confirmed.Covers(Processed))
	require.False(t, Processed.Covers(Confirmed))
	require.False(t, Commitment("max").Covers(Processed))

	c, err := ParseCommitment("finalized")
	require.NoError(t, err)
	require.Equal(t, Finalized, c)
	_, err = ParseCommitment("recent")
	require.Error(t, err)
}

func TestErrorString(t *testing.T) {
	e := NewError(PreflightFailureCode, "Transaction simulation failed", nil)
	require.Equal(t, "Transaction simulation failed (-32002)", e.Error())

	e = NewError(InvalidParamsCode, "Invalid params", json.RawMessage(`"bad signature"`))
	require.Equal(t, `Invalid params (-32602) - "bad signature"`, e.Error())
}

func TestErrorIs(t *testing.T) {
	e := NewError(NodeUnhealthyCode, "Node is unhealthy", json.RawMessage(`{"numSlotsBehind":42}`))
	wrapped := fmt.Errorf("call failed: %w", e)
	require.ErrorIs(t, wrapped, NewError(NodeUnhealthyCode, "", nil))
	require.False(t, errors.Is(wrapped, NewError(InternalErrorCode, "", nil)))

	var remote *Error
	require.True(t, errors.As(wrapped, &remote))
	require.Equal(t, int64(NodeUnhealthyCode), remote.Code)
}

func TestResponseDecoding(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"error":{"code":-32601,"message":"Method not found"}}`), &r))
	require.NotNil(t, r.Error)
	require.Equal(t, int64(MethodNotFoundCode), r.Error.Code)
	require.True(t, IsNull(r.Result))

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"signatureNotification","params":{"result":{"context":{"slot":5},"value":{"err":null}},"subscription":24}}`), &n))
	require.Equal(t, "signatureNotification", n.Event)
	require.Equal(t, "24", string(n.Params.Subscription))
	require.False(t, IsNull(n.Params.Result))
}
