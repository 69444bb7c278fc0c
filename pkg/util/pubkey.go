package util

import (
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeySize is the length of an account address.
const PublicKeySize = 32

// PublicKey is an account address (ed25519 public key or program-derived
// address).
type PublicKey [PublicKeySize]byte

// PublicKeyDecodeString attempts to decode the given base58 string into a
// PublicKey.
func PublicKeyDecodeString(s string) (PublicKey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return PublicKeyDecodeBytes(b)
}

// PublicKeyDecodeBytes attempts to decode the given bytes into a PublicKey.
func PublicKeyDecodeBytes(b []byte) (p PublicKey, err error) {
	if len(b) != PublicKeySize {
		return p, fmt.Errorf("expected byte size of %d got %d", PublicKeySize, len(b))
	}
	copy(p[:], b)
	return p, nil
}

// Bytes returns the byte slice representation of p.
func (p PublicKey) Bytes() []byte {
	return p[:]
}

// String implements the Stringer interface.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// MarshalJSON implements the json.Marshaler interface.
func (p PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (p *PublicKey) UnmarshalJSON(data []byte) (err error) {
	var js string
	if err = json.Unmarshal(data, &js); err != nil {
		return err
	}
	*p, err = PublicKeyDecodeString(js)
	return err
}
