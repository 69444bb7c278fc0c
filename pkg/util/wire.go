package util

import (
	"errors"
	"fmt"
)

var errShortVecOverflow = errors.New("compact-u16 overflow")

// TransactionSignature returns the first signature of the given wire-encoded
// signed transaction. Wire transaction starts with a compact-u16 signature
// count followed by the signatures.
func TransactionSignature(tx []byte) (Signature, error) {
	n, size, err := decodeShortVec(tx)
	if err != nil {
		return Signature{}, fmt.Errorf("bad signature count: %w", err)
	}
	if n == 0 {
		return Signature{}, errors.New("transaction has no signatures")
	}
	if len(tx) < size+SignatureSize {
		return Signature{}, fmt.Errorf("transaction is too short: %d bytes", len(tx))
	}
	sig, _ := SignatureDecodeBytes(tx[size : size+SignatureSize])
	if sig.IsZero() {
		return Signature{}, errors.New("transaction is not signed")
	}
	return sig, nil
}

// decodeShortVec decodes compact-u16 length prefix, it returns the value and
// the number of bytes used.
func decodeShortVec(b []byte) (int, int, error) {
	var v int
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errors.New("unexpected end of data")
		}
		elem := int(b[i])
		if i > 0 && elem == 0 {
			return 0, 0, errors.New("non-minimal encoding")
		}
		v |= (elem & 0x7f) << (7 * i)
		if elem&0x80 == 0 {
			if v > 0xffff {
				return 0, 0, errShortVecOverflow
			}
			return v, i + 1, nil
		}
	}
	return 0, 0, errShortVecOverflow
}
