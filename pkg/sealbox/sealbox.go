// Package sealbox implements the client side of an end-to-end encrypted
// messaging system.
//
// Each device holds a single ristretto255 key pair. The public half is
// published to a directory service; the private half never leaves the device
// except inside a recovery-encrypted envelope, wrapped with a key derived
// from a high-entropy recovery secret held only by the user. Message bodies
// and image attachments are encrypted with per-conversation symmetric keys
// derived on demand from the local private key and the peer's published
// public key, so a key regenerated by either party rotates the conversation
// key automatically.
//
// The directory service, message persistence, object storage, and local
// key-value storage are external collaborators, consumed through the narrow
// Directory, LocalStore, and Prompter interfaces.
package sealbox

import (
	"errors"

	"github.com/sealbox/sealbox/pkg/sealbox/internal/authenc"
)

var (
	// ErrInvalidCiphertext is returned when a payload cannot be decrypted,
	// either due to an incorrect key, tampering, or a malformed encoding.
	// Callers must suppress the payload entirely rather than display it.
	ErrInvalidCiphertext = authenc.ErrInvalidCiphertext

	// ErrPeerNotEnrolled is returned when a peer has not published a public
	// key, so no shared key can be derived. This is an expected, recoverable
	// condition, not a bug.
	ErrPeerNotEnrolled = errors.New("peer has not initialized encryption")

	// ErrInvalidRecoverySecret is returned when a recovery backup cannot be
	// unwrapped with the supplied secret.
	ErrInvalidRecoverySecret = errors.New("invalid recovery secret")

	// ErrNoRecoveryBackup is returned when no recovery backup exists for the
	// user.
	ErrNoRecoveryBackup = errors.New("no recovery backup")

	// ErrBackupDeclined is returned when the user does not confirm having
	// recorded the recovery secret. The backup flow is retried on a future
	// session start, never within the same session.
	ErrBackupDeclined = errors.New("recovery backup not confirmed")
)
