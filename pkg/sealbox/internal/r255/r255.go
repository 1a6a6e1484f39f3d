// Package r255 provides the ristretto255 key agreement primitives used for
// pairwise message keys.
package r255

import (
	"crypto/rand"
	"errors"

	"github.com/gtank/ristretto255"
)

const (
	PublicKeySize  = 32 // PublicKeySize is the length of an encoded public key in bytes.
	PrivateKeySize = 32 // PrivateKeySize is the length of an encoded private key in bytes.

	// UniformBytestringSize is the length of a uniform bytestring which can be
	// mapped to a ristretto255 scalar.
	UniformBytestringSize = 64
)

// ErrInvalidKey is returned when a public or private key cannot be decoded.
var ErrInvalidKey = errors.New("invalid key")

// GenerateKeys returns a new, random private key and its corresponding public
// key.
func GenerateKeys() (*ristretto255.Scalar, *ristretto255.Element, error) {
	var r [UniformBytestringSize]byte

	// Generate a random 64-byte bytestring.
	if _, err := rand.Read(r[:]); err != nil {
		return nil, nil, err
	}

	// Map it to a scalar and calculate the corresponding element.
	d := ristretto255.NewScalar().FromUniformBytes(r[:])

	return d, ristretto255.NewElement().ScalarBaseMult(d), nil
}

// PublicKey returns the public key element for the given private key scalar.
func PublicKey(d *ristretto255.Scalar) *ristretto255.Element {
	return ristretto255.NewElement().ScalarBaseMult(d)
}

// SharedSecret returns the encoded Diffie-Hellman shared secret element for
// the given private key and the peer's public key. Both parties calculate the
// same value.
func SharedSecret(d *ristretto255.Scalar, q *ristretto255.Element) []byte {
	zz := ristretto255.NewElement().ScalarMult(d, q)
	return zz.Encode(nil)
}

// EncodePrivateKey encodes the given private key scalar into a 32-byte slice.
func EncodePrivateKey(d *ristretto255.Scalar) []byte {
	return d.Encode(nil)
}

// DecodePrivateKey decodes a private key scalar from a 32-byte slice.
func DecodePrivateKey(b []byte) (*ristretto255.Scalar, error) {
	d := ristretto255.NewScalar()
	if err := d.Decode(b); err != nil {
		return nil, ErrInvalidKey
	}

	return d, nil
}

// DecodePublicKey decodes a public key element from a 32-byte slice.
func DecodePublicKey(b []byte) (*ristretto255.Element, error) {
	q := ristretto255.NewElement()
	if err := q.Decode(b); err != nil {
		return nil, ErrInvalidKey
	}

	return q, nil
}
