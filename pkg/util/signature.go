package util

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// SignatureSize is the length of an ed25519 transaction signature.
const SignatureSize = 64

// Signature is a transaction signature. The first signature of a transaction
// identifies it on the ledger, so it's used as a transaction ID everywhere in
// this module.
type Signature [SignatureSize]byte

// SignatureDecodeString attempts to decode the given base58 string into a
// Signature.
func SignatureDecodeString(s string) (Signature, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid signature %q: %w", s, err)
	}
	return SignatureDecodeBytes(b)
}

// SignatureDecodeBytes attempts to decode the given bytes into a Signature.
func SignatureDecodeBytes(b []byte) (s Signature, err error) {
	if len(b) != SignatureSize {
		return s, fmt.Errorf("expected byte size of %d got %d", SignatureSize, len(b))
	}
	copy(s[:], b)
	return s, nil
}

// Bytes returns a byte slice representation of s.
func (s Signature) Bytes() []byte {
	return s[:]
}

// IsZero checks whether the signature is all-zero (unset).
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// String implements the Stringer interface, it returns base58 text used on
// the wire.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// MarshalJSON implements the json.Marshaler interface.
func (s Signature) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (s *Signature) UnmarshalJSON(data []byte) (err error) {
	var js string
	if err = json.Unmarshal(data, &js); err != nil {
		return err
	}
	*s, err = SignatureDecodeString(js)
	return err
}
