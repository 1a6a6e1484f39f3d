package sealbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/sealbox/sealbox/pkg/sealbox/internal/authenc"
	"github.com/sealbox/sealbox/pkg/sealbox/internal/r255"
	"golang.org/x/crypto/hkdf"
)

// KeyRecord is a user's row in the directory service: the published public
// key and, once created, the recovery backup.
type KeyRecord struct {
	UserID            string
	PublicKeyExport   string
	HasRecoveryBackup bool
	Backup            *RecoveryBackup // nil before backup creation
}

// Directory is the narrow interface to the external service that stores each
// user's published public key and recovery backup record.
type Directory interface {
	// UpsertPublicKey publishes a user's public key export with overwrite
	// semantics. It must be idempotent.
	UpsertPublicKey(ctx context.Context, userID, publicKeyExport string) error

	// KeyRecord returns a user's record, or (nil, nil) if the user has none.
	KeyRecord(ctx context.Context, userID string) (*KeyRecord, error)

	// UpdateRecoveryBackup stores a recovery backup and sets the backup flag
	// atomically with the data.
	UpdateRecoveryBackup(ctx context.Context, userID string, backup *RecoveryBackup) error
}

// LocalStore is the device-local persistent key-value store used to cache the
// key pair export between sessions.
type LocalStore interface {
	// GetItem returns the value for key, reporting whether it exists.
	GetItem(key string) (string, bool, error)

	// SetItem stores the value for key.
	SetItem(key, value string) error
}

// Prompter handles the interactive steps of recovery setup and restore. Both
// methods block until the user acts or ctx is cancelled, so callers can bound
// or abandon the wait deliberately.
type Prompter interface {
	// ConfirmSecretSaved shows the freshly generated recovery secret and
	// reports whether the user confirmed having recorded it.
	ConfirmSecretSaved(ctx context.Context, secret string) (bool, error)

	// AskRecoverySecret solicits the recovery secret, reporting ok=false on
	// an explicit cancel.
	AskRecoverySecret(ctx context.Context) (secret string, ok bool, err error)
}

// localKeyPairItem is the LocalStore key under which the key pair export is
// cached, scoped per device profile.
const localKeyPairItem = "sealbox.keypair"

// errRestoreDeclined signals that the user explicitly cancelled the recovery
// secret prompt, abandoning restoration.
var errRestoreDeclined = errors.New("recovery restore declined")

// KeySource reports where LoadOrCreateKeyPair found the active key pair.
type KeySource int

const (
	// KeySourceLocal means the key pair was read from local storage.
	KeySourceLocal KeySource = iota

	// KeySourceRestored means the key pair was restored from a recovery
	// backup and re-persisted locally.
	KeySourceRestored

	// KeySourceGenerated means a fresh key pair was generated, either on
	// first use or because no backup could be restored.
	KeySourceGenerated
)

// Session owns the active key pair and the per-peer key caches for one
// running client. Construct it once at startup and share it; the peer caches
// are safe for concurrent use.
type Session struct {
	userID   string
	dir      Directory
	store    LocalStore
	prompter Prompter
	log      zerolog.Logger

	kp *KeyPair

	mu         sync.Mutex
	peerKeys   map[string]*PublicKey
	sharedKeys map[string][]byte
}

// NewSession creates a session for the given user. LoadOrCreateKeyPair must
// complete before any encrypt or decrypt operation is attempted.
func NewSession(userID string, dir Directory, store LocalStore, prompter Prompter, log zerolog.Logger) *Session {
	return &Session{
		userID:     userID,
		dir:        dir,
		store:      store,
		prompter:   prompter,
		log:        log.With().Str("component", "sealbox").Logger(),
		peerKeys:   make(map[string]*PublicKey),
		sharedKeys: make(map[string][]byte),
	}
}

// UserID returns the local user's identity.
func (s *Session) UserID() string {
	return s.userID
}

// PublicKey returns the active key pair's public half, or nil before
// LoadOrCreateKeyPair has completed.
func (s *Session) PublicKey() *PublicKey {
	if s.kp == nil {
		return nil
	}

	return s.kp.PublicKey()
}

// LoadOrCreateKeyPair guarantees a usable key pair, in priority order: the
// local store, a restored recovery backup, or fresh generation. Corrupted
// local state is logged and treated as absent; it never blocks the user from
// regaining a working identity.
func (s *Session) LoadOrCreateKeyPair(ctx context.Context) (KeySource, error) {
	// Fast path: deserialize the cached key pair.
	if data, ok, err := s.store.GetItem(localKeyPairItem); err != nil {
		s.log.Warn().Err(err).Msg("local key store unreadable; treating as empty")
	} else if ok {
		kp, err := ImportKeyPair(data)
		if err != nil {
			s.log.Warn().Err(err).Msg("cached key pair corrupted; treating as absent")
		} else {
			s.kp = kp
			return KeySourceLocal, nil
		}
	}

	// No local key pair; try restoring from a recovery backup.
	kp, err := s.restoreFromBackup(ctx)
	if err == nil {
		if err := s.persistKeyPair(kp); err != nil {
			return 0, err
		}

		s.kp = kp

		return KeySourceRestored, nil
	}

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	// Only a missing, declined, or unusable backup falls through to fresh
	// generation. An infrastructure failure must surface instead: generating
	// here would orphan a restorable backup and overwrite the published key.
	if !errors.Is(err, ErrNoRecoveryBackup) && !errors.Is(err, errRestoreDeclined) &&
		!errors.Is(err, ErrInvalidRecoverySecret) {
		return 0, err
	}

	s.log.Info().Err(err).Msg("no key pair restored; generating a fresh one")

	// First-ever use, or the user declined or failed recovery: generate a
	// fresh key pair.
	kp, err = GenerateKeyPair()
	if err != nil {
		return 0, err
	}

	if err := s.persistKeyPair(kp); err != nil {
		return 0, err
	}

	s.kp = kp

	return KeySourceGenerated, nil
}

// restoreFromBackup prompts for the recovery secret and unwraps the stored
// backup, if any.
func (s *Session) restoreFromBackup(ctx context.Context) (*KeyPair, error) {
	record, err := s.dir.KeyRecord(ctx, s.userID)
	if err != nil {
		return nil, err
	}

	if record == nil || !record.HasRecoveryBackup || record.Backup == nil {
		return nil, ErrNoRecoveryBackup
	}

	secret, ok, err := s.prompter.AskRecoverySecret(ctx)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errRestoreDeclined
	}

	kp, err := UnwrapKeyPair(record.Backup, secret, record.PublicKeyExport)
	if err != nil {
		if errors.Is(err, ErrInvalidRecoverySecret) {
			return nil, err
		}

		// A backup that fails after the secret authenticated is corrupted
		// beyond use; retrying cannot help, so it falls through the same way
		// a wrong secret does.
		return nil, fmt.Errorf("%w: %s", ErrInvalidRecoverySecret, err)
	}

	return kp, nil
}

// persistKeyPair caches the key pair export locally so the next session start
// takes the fast path.
func (s *Session) persistKeyPair(kp *KeyPair) error {
	data, err := kp.Export()
	if err != nil {
		return err
	}

	return s.store.SetItem(localKeyPairItem, data)
}

// PublishIdentity upserts the public key export into the directory service
// with last-writer-wins semantics. A failed publish is non-fatal for the
// caller: encryption with cached peer keys still works, but peers cannot
// establish a fresh shared key with this device until a later session start
// retries the publish.
func (s *Session) PublishIdentity(ctx context.Context) error {
	if s.kp == nil {
		return fmt.Errorf("no key pair loaded")
	}

	return s.dir.UpsertPublicKey(ctx, s.userID, s.kp.PublicKey().String())
}

// EnsureRecoveryBackup runs the one-time backup flow unless a backup already
// exists. The flow is hard-gated on the user confirming they have recorded
// the recovery secret; a declined confirmation leaves the backup flag false
// so the flow is retried on a future session start.
func (s *Session) EnsureRecoveryBackup(ctx context.Context) error {
	if s.kp == nil {
		return fmt.Errorf("no key pair loaded")
	}

	record, err := s.dir.KeyRecord(ctx, s.userID)
	if err != nil {
		return err
	}

	if record != nil && record.HasRecoveryBackup {
		return nil
	}

	// Generate the recovery secret. This is the only copy.
	secret, err := NewRecoverySecret()
	if err != nil {
		return err
	}

	confirmed, err := s.prompter.ConfirmSecretSaved(ctx, secret)
	if err != nil {
		return err
	}

	if !confirmed {
		return ErrBackupDeclined
	}

	backup, err := WrapKeyPair(s.kp, secret)
	if err != nil {
		return err
	}

	return s.dir.UpdateRecoveryBackup(ctx, s.userID, backup)
}

// PeerKey returns the peer's published public key, fetching it from the
// directory service on first use and caching it for the session's lifetime.
func (s *Session) PeerKey(ctx context.Context, peerID string) (*PublicKey, error) {
	s.mu.Lock()
	pk, ok := s.peerKeys[peerID]
	s.mu.Unlock()

	if ok {
		return pk, nil
	}

	record, err := s.dir.KeyRecord(ctx, peerID)
	if err != nil {
		return nil, err
	}

	if record == nil || record.PublicKeyExport == "" {
		return nil, ErrPeerNotEnrolled
	}

	pk = &PublicKey{}
	if err := pk.UnmarshalText([]byte(record.PublicKeyExport)); err != nil {
		return nil, err
	}

	// Keyed writes only; a concurrent first fetch at worst duplicates work.
	s.mu.Lock()
	s.peerKeys[peerID] = pk
	s.mu.Unlock()

	return pk, nil
}

// sharedKey derives (and caches in memory) the symmetric key shared with the
// given peer. It is deterministically re-derivable from the local private key
// and the peer's current public key, so a regenerated identity on either
// side rotates it with no separate protocol; staleness is bounded by process
// lifetime.
func (s *Session) sharedKey(ctx context.Context, peerID string) ([]byte, error) {
	if s.kp == nil {
		return nil, fmt.Errorf("no key pair loaded")
	}

	s.mu.Lock()
	key, ok := s.sharedKeys[peerID]
	s.mu.Unlock()

	if ok {
		return key, nil
	}

	peer, err := s.PeerKey(ctx, peerID)
	if err != nil {
		return nil, err
	}

	key, err = deriveSharedKey(s.kp, peer)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sharedKeys[peerID] = key
	s.mu.Unlock()

	return key, nil
}

// deriveSharedKey performs the key agreement between the local private key
// and the peer's public key, then derives a symmetric key from the agreed
// secret. Both public keys are bound into the derivation in canonical order
// so either party derives the same key.
func deriveSharedKey(kp *KeyPair, peer *PublicKey) ([]byte, error) {
	zz := r255.SharedSecret(kp.d, peer.q)

	mine := kp.pk.q.Encode(nil)
	theirs := peer.q.Encode(nil)

	lo, hi := mine, theirs
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}

	info := make([]byte, 0, len("sealbox.pairwise")+len(lo)+len(hi))
	info = append(info, "sealbox.pairwise"...)
	info = append(info, lo...)
	info = append(info, hi...)

	key := make([]byte, authenc.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, zz, nil, info), key); err != nil {
		return nil, err
	}

	return key, nil
}

// EncryptText encrypts a text body for the given peer, returning the wire
// form "<base64 iv>:<base64 ciphertext>".
func (s *Session) EncryptText(ctx context.Context, peerID, plaintext string) (string, error) {
	key, err := s.sharedKey(ctx, peerID)
	if err != nil {
		return "", err
	}

	iv, ciphertext, err := authenc.Seal(key, []byte(plaintext))
	if err != nil {
		return "", err
	}

	return EncodeEnvelope(iv, ciphertext), nil
}

// DecryptText decrypts a stored message body from the given peer. Bodies
// without the segment separator are legacy plaintext and are returned
// unchanged. Any failure to decode or decrypt yields ErrInvalidCiphertext;
// callers must suppress the message entirely rather than display ciphertext,
// an error string, or partial output.
func (s *Session) DecryptText(ctx context.Context, peerID, body string) (string, error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return "", err
	}

	switch env.Kind {
	case EnvelopeLegacy:
		return env.Legacy, nil

	case EnvelopeEncrypted:
		key, err := s.sharedKey(ctx, peerID)
		if err != nil {
			return "", err
		}

		plaintext, err := authenc.Open(key, env.IV, env.Ciphertext)
		if err != nil {
			return "", err
		}

		return string(plaintext), nil

	default:
		return "", ErrInvalidCiphertext
	}
}

// EncryptBytes encrypts raw attachment bytes for the given peer. The result
// is a single buffer: a 12-byte IV prefix immediately followed by the
// ciphertext.
func (s *Session) EncryptBytes(ctx context.Context, peerID string, plain []byte) ([]byte, error) {
	key, err := s.sharedKey(ctx, peerID)
	if err != nil {
		return nil, err
	}

	return authenc.SealPrefixed(key, plain)
}

// DecryptBytes decrypts a buffer produced by EncryptBytes.
func (s *Session) DecryptBytes(ctx context.Context, peerID string, enc []byte) ([]byte, error) {
	key, err := s.sharedKey(ctx, peerID)
	if err != nil {
		return nil, err
	}

	return authenc.OpenPrefixed(key, enc)
}
