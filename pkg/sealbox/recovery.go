package sealbox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/sealbox/sealbox/pkg/sealbox/internal/authenc"
	"github.com/sealbox/sealbox/pkg/sealbox/internal/r255"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// RecoverySecretLen is the length of a rendered recovery secret in hex
	// characters (256 bits of entropy).
	RecoverySecretLen = 64

	// RecoveryIterations is the fixed PBKDF2 iteration count for newly
	// created backups. Restores use the iteration count stored with the
	// backup, so this can be raised without breaking old backups.
	RecoveryIterations = 250_000

	recoverySecretSize = 32
	recoverySaltSize   = 16
)

// NewRecoverySecret generates a fresh 256-bit recovery secret, rendered as
// hex. The returned string is the only copy; it is shown to the user and
// never stored anywhere by the system.
func NewRecoverySecret() (string, error) {
	var b [recoverySecretSize]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}

	return hex.EncodeToString(b[:]), nil
}

// RecoveryBackup is a recovery-encrypted envelope for a private key, durable
// in the directory service. The recovery secret itself is never stored; only
// this ciphertext and the key derivation parameters exist server-side.
type RecoveryBackup struct {
	Ciphertext []byte
	Salt       []byte
	IV         []byte
	Iterations int
}

// WrapKeyPair encrypts the key pair's private key under a key derived from
// the given recovery secret, producing a backup suitable for durable storage.
func WrapKeyPair(kp *KeyPair, secret string) (*RecoveryBackup, error) {
	// Generate a random salt.
	salt := make([]byte, recoverySaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	// Derive the wrapping key from the secret and salt.
	key := wrappingKey(secret, salt, RecoveryIterations)

	// Encrypt the exported private key.
	iv, ciphertext, err := authenc.Seal(key, kp.privateKeyBytes())
	if err != nil {
		return nil, err
	}

	return &RecoveryBackup{
		Ciphertext: ciphertext,
		Salt:       salt,
		IV:         iv,
		Iterations: RecoveryIterations,
	}, nil
}

// UnwrapKeyPair decrypts a backup with the user-supplied secret and
// reconstructs the key pair, taking the public half from the published
// export. A wrong secret or corrupted backup yields ErrInvalidRecoverySecret,
// never garbage key material.
func UnwrapKeyPair(backup *RecoveryBackup, secret, publicKeyExport string) (*KeyPair, error) {
	if backup.Iterations <= 0 || len(backup.Salt) == 0 {
		return nil, fmt.Errorf("invalid recovery backup: missing key derivation parameters")
	}

	// Re-derive the wrapping key with the stored salt and iteration count.
	key := wrappingKey(secret, backup.Salt, backup.Iterations)

	// Decrypt the private key. Authenticated encryption makes a wrong secret
	// detectable here.
	b, err := authenc.Open(key, backup.IV, backup.Ciphertext)
	if err != nil {
		if errors.Is(err, authenc.ErrInvalidCiphertext) {
			return nil, ErrInvalidRecoverySecret
		}

		return nil, err
	}

	d, err := r255.DecodePrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid recovery backup: %w", err)
	}

	// Reconstruct the public key from the published export.
	var pk PublicKey
	if err := pk.UnmarshalText([]byte(publicKeyExport)); err != nil {
		return nil, fmt.Errorf("invalid recovery backup: %w", err)
	}

	// The restored private key must match the published public key.
	if derived := r255.PublicKey(d); pk.q.Equal(derived) != 1 {
		return nil, fmt.Errorf("invalid recovery backup: public key mismatch")
	}

	return &KeyPair{d: d, pk: pk}, nil
}

// wrappingKey derives a symmetric wrapping key from a recovery secret via
// PBKDF2-SHA256.
func wrappingKey(secret string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(secret), salt, iterations, authenc.KeySize, sha256.New)
}
