// Package authenc provides the authenticated encryption used for message
// bodies, image attachments, and recovery backups.
//
// All three use ChaCha20-Poly1305 with a freshly random 12-byte IV per
// encryption. Text bodies carry the IV as a separate base64 segment; binary
// blobs carry it as a fixed-length prefix of the ciphertext buffer.
package authenc

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize = chacha20poly1305.KeySize   // KeySize is the symmetric key size in bytes.
	IVSize  = chacha20poly1305.NonceSize // IVSize is the initialization vector size in bytes.
	TagSize = chacha20poly1305.Overhead  // TagSize is the authentication tag size in bytes.
)

// ErrInvalidCiphertext is returned when a ciphertext cannot be decrypted,
// either due to an incorrect key or tampering.
var ErrInvalidCiphertext = errors.New("invalid ciphertext")

// Seal encrypts the plaintext with the given key and a freshly random IV,
// returning the IV and the ciphertext separately.
func Seal(key, plaintext []byte) (iv, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, err
	}

	// Generate a random IV.
	iv = make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, err
	}

	// Encrypt and authenticate the plaintext.
	return iv, aead.Seal(nil, iv, plaintext, nil), nil
}

// Open decrypts the ciphertext with the given key and IV. If any bit of the
// IV or ciphertext has been altered, or if the key is incorrect, it returns
// ErrInvalidCiphertext.
func Open(key, iv, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	if len(iv) != IVSize {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	return plaintext, nil
}

// SealPrefixed encrypts the plaintext with the given key, returning the IV
// and ciphertext as a single contiguous buffer.
func SealPrefixed(key, plaintext []byte) ([]byte, error) {
	iv, ciphertext, err := Seal(key, plaintext)
	if err != nil {
		return nil, err
	}

	return append(iv, ciphertext...), nil
}

// OpenPrefixed decrypts a buffer produced by SealPrefixed.
func OpenPrefixed(key, buf []byte) ([]byte, error) {
	if len(buf) < IVSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	return Open(key, buf[:IVSize], buf[IVSize:])
}
