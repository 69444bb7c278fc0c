package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeShortVec(t *testing.T) {
	for _, tc := range []struct {
		data []byte
		v    int
		size int
	}{
		{[]byte{0x00}, 0, 1},
		{[]byte{0x01, 0xff}, 1, 1},
		{[]byte{0x7f}, 0x7f, 1},
		{[]byte{0x80, 0x01}, 0x80, 2},
		{[]byte{0xff, 0x7f}, 0x3fff, 2},
		{[]byte{0x80, 0x80, 0x01}, 0x4000, 3},
		{[]byte{0xff, 0xff, 0x03}, 0xffff, 3},
	} {
		v, size, err := decodeShortVec(tc.data)
		require.NoError(t, err)
		require.Equal(t, tc.v, v)
		require.Equal(t, tc.size, size)
	}
	for _, bad := range [][]byte{
		nil,
		{0x80},
		{0x80, 0x00},
		{0xff, 0xff, 0x04},
		{0x80, 0x80, 0x80, 0x01},
	} {
		_, _, err := decodeShortVec(bad)
		require.Error(t, err, bad)
	}
}

func TestTransactionSignature(t *testing.T) {
	var sig Signature
	for i := range sig {
		sig[i] = byte(i)
	}
	tx := append([]byte{0x02}, sig[:]...)
	tx = append(tx, make([]byte, SignatureSize)...) // Second signature.
	tx = append(tx, 0x01, 0x00, 0x01)               // Message.

	actual, err := TransactionSignature(tx)
	require.NoError(t, err)
	require.Equal(t, sig, actual)

	_, err = TransactionSignature([]byte{0x00, 0x01})
	require.Error(t, err)
	_, err = TransactionSignature(tx[:40])
	require.Error(t, err)
	_, err = TransactionSignature(append([]byte{0x01}, make([]byte, SignatureSize)...))
	require.Error(t, err)
	_, err = TransactionSignature(nil)
	require.Error(t, err)
}
