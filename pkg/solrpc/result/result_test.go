package result

import (
	"encoding/json"
	"testing"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/stretchr/testify/require"
)

func TestSignatureNotification(t *testing.T) {
	var n SignatureNotification
	require.NoError(t, json.Unmarshal([]byte(`{"context":{"slot":5207624},"value":{"err":null}}`), &n))
	require.Equal(t, uint64(5207624), n.Context.Slot)
	require.False(t, n.Received)
	require.False(t, n.Failed())

	n = SignatureNotification{}
	require.NoError(t, json.Unmarshal([]byte(`{"context":{"slot":1},"value":{"err":{"InstructionError":[0,"Custom"]}}}`), &n))
	require.True(t, n.Failed())

	n = SignatureNotification{}
	require.NoError(t, json.Unmarshal([]byte(`{"context":{"slot":1},"value":"receivedSignature"}`), &n))
	require.True(t, n.Received)

	require.Error(t, json.Unmarshal([]byte(`{"context":{"slot":1},"value":"whatever"}`), &n))
	require.Error(t, json.Unmarshal([]byte(`{"context":{"slot":1},"value":42}`), &n))
}

func TestSignatureStatusReached(t *testing.T) {
	var statuses SignatureStatuses
	require.NoError(t, json.Unmarshal([]byte(`{"context":{"slot":82},"value":[{"slot":72,"confirmations":10,"err":null,"confirmationStatus":"confirmed"},null]}`), &statuses))
	require.Len(t, statuses.Value, 2)
	require.Nil(t, statuses.Value[1])

	s := statuses.Value[0]
	require.False(t, s.Failed())
	require.True(t, s.Reached(solrpc.Processed))
	require.True(t, s.Reached(solrpc.Confirmed))
	require.False(t, s.Reached(solrpc.Finalized))

	rooted := &SignatureStatus{}
	require.True(t, rooted.Reached(solrpc.Finalized))
	one := uint64(1)
	legacy := &SignatureStatus{Confirmations: &one}
	require.False(t, legacy.Reached(solrpc.Confirmed))
}

func TestAccountDecodeData(t *testing.T) {
	var info AccountInfo
	require.NoError(t, json.Unmarshal([]byte(`{"context":{"slot":1},"value":{"lamports":1,"owner":"11111111111111111111111111111111","data":["AQID","base64"],"executable":false,"rentEpoch":18446744073709551615}}`), &info))
	require.NotNil(t, info.Value)
	data, err := info.Value.DecodeData()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	info.Value.Data = json.RawMessage(`["abc","base58"]`)
	_, err = info.Value.DecodeData()
	require.ErrorIs(t, err, ErrNotBase64)

	require.NoError(t, json.Unmarshal([]byte(`{"context":{"slot":1},"value":null}`), &info))
	require.Nil(t, info.Value)
}
