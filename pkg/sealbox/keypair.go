package sealbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gtank/ristretto255"
	"github.com/sealbox/sealbox/pkg/sealbox/internal/r255"
)

// KeyPair is the local identity's asymmetric key material. Exactly one key
// pair is active per device profile at any time.
type KeyPair struct {
	d  *ristretto255.Scalar
	pk PublicKey
}

// GenerateKeyPair creates a new, random key pair.
func GenerateKeyPair() (*KeyPair, error) {
	d, q, err := r255.GenerateKeys()
	if err != nil {
		return nil, err
	}

	return &KeyPair{d: d, pk: PublicKey{q: q}}, nil
}

// PublicKey returns the publishable half of the key pair.
func (kp *KeyPair) PublicKey() *PublicKey {
	return &kp.pk
}

// keyPairExport is the serializable form of a key pair, used only for local
// persistence. The private field must never leave the device unencrypted.
type keyPairExport struct {
	Public  string `json:"public"`
	Private string `json:"private"`
}

// Export returns the serializable form of the key pair as JSON.
func (kp *KeyPair) Export() (string, error) {
	b, err := json.Marshal(keyPairExport{
		Public:  kp.pk.String(),
		Private: base64.StdEncoding.EncodeToString(r255.EncodePrivateKey(kp.d)),
	})
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// ImportKeyPair decodes the results of Export back into a usable key pair.
func ImportKeyPair(data string) (*KeyPair, error) {
	var ex keyPairExport
	if err := json.Unmarshal([]byte(data), &ex); err != nil {
		return nil, fmt.Errorf("invalid key pair export: %w", err)
	}

	b, err := base64.StdEncoding.DecodeString(ex.Private)
	if err != nil {
		return nil, fmt.Errorf("invalid key pair export: %w", err)
	}

	d, err := r255.DecodePrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid key pair export: %w", err)
	}

	var pk PublicKey
	if err := pk.UnmarshalText([]byte(ex.Public)); err != nil {
		return nil, fmt.Errorf("invalid key pair export: %w", err)
	}

	// The stored public key must match the private scalar.
	if derived := r255.PublicKey(d); pk.q.Equal(derived) != 1 {
		return nil, fmt.Errorf("invalid key pair export: public key mismatch")
	}

	return &KeyPair{d: d, pk: pk}, nil
}

// privateKeyBytes returns the raw private key encoding for recovery wrapping.
func (kp *KeyPair) privateKeyBytes() []byte {
	return r255.EncodePrivateKey(kp.d)
}
