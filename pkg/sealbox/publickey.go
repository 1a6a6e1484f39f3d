package sealbox

import (
	"encoding"
	"fmt"

	"github.com/gtank/ristretto255"
	"github.com/mr-tron/base58"
	"github.com/sealbox/sealbox/pkg/sealbox/internal/r255"
)

// PublicKey is the publishable half of an identity's key material, used to
// derive shared keys for messages sent to its owner.
//
// It can be marshalled and unmarshalled as a base58 string for storage in the
// directory service.
type PublicKey struct {
	q *ristretto255.Element
}

// Equals returns true if the given PublicKey is equal to the receiver.
func (pk *PublicKey) Equals(other *PublicKey) bool {
	return pk.q.Equal(other.q) == 1
}

// String returns the public key as base58 text.
func (pk *PublicKey) String() string {
	text, err := pk.MarshalText()
	if err != nil {
		panic(err)
	}

	return string(text)
}

// MarshalBinary encodes the public key into a 32-byte slice.
func (pk *PublicKey) MarshalBinary() (data []byte, err error) {
	return pk.q.Encode(nil), nil
}

// UnmarshalBinary decodes the public key from a 32-byte slice.
func (pk *PublicKey) UnmarshalBinary(data []byte) error {
	q, err := r255.DecodePublicKey(data)
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	pk.q = q

	return nil
}

// MarshalText encodes the public key into base58 text and returns the result.
func (pk *PublicKey) MarshalText() (text []byte, err error) {
	return []byte(base58.Encode(pk.q.Encode(nil))), nil
}

// UnmarshalText decodes the results of MarshalText and updates the receiver
// to contain the decoded public key.
func (pk *PublicKey) UnmarshalText(text []byte) error {
	data, err := base58.Decode(string(text))
	if err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}

	return pk.UnmarshalBinary(data)
}

var (
	_ encoding.BinaryMarshaler   = &PublicKey{}
	_ encoding.BinaryUnmarshaler = &PublicKey{}
	_ encoding.TextMarshaler     = &PublicKey{}
	_ encoding.TextUnmarshaler   = &PublicKey{}
	_ fmt.Stringer               = &PublicKey{}
)
