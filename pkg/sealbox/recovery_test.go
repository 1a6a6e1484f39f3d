package sealbox

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/codahale/gubbins/assert"
)

func TestNewRecoverySecret(t *testing.T) {
	t.Parallel()

	secret, err := NewRecoverySecret()
	if err != nil {
		t.Fatal(err)
	}

	if len(secret) != RecoverySecretLen {
		t.Errorf("secret is %d characters, want %d", len(secret), RecoverySecretLen)
	}

	if _, err := hex.DecodeString(secret); err != nil {
		t.Errorf("secret is not hex: %v", err)
	}

	other, err := NewRecoverySecret()
	if err != nil {
		t.Fatal(err)
	}

	if secret == other {
		t.Error("two secrets are identical")
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	secret, err := NewRecoverySecret()
	if err != nil {
		t.Fatal(err)
	}

	backup, err := WrapKeyPair(kp, secret)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "iteration count", RecoveryIterations, backup.Iterations)

	restored, err := UnwrapKeyPair(backup, secret, kp.PublicKey().String())
	if err != nil {
		t.Fatal(err)
	}

	want, err := kp.Export()
	if err != nil {
		t.Fatal(err)
	}

	got, err := restored.Export()
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "restored key pair", want, got)
}

func TestUnwrapWrongSecret(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	secret, err := NewRecoverySecret()
	if err != nil {
		t.Fatal(err)
	}

	backup, err := WrapKeyPair(kp, secret)
	if err != nil {
		t.Fatal(err)
	}

	wrong, err := NewRecoverySecret()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := UnwrapKeyPair(backup, wrong, kp.PublicKey().String()); !errors.Is(err, ErrInvalidRecoverySecret) {
		t.Errorf("err = %v, want ErrInvalidRecoverySecret", err)
	}
}

func TestUnwrapTamperedBackup(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	secret, err := NewRecoverySecret()
	if err != nil {
		t.Fatal(err)
	}

	backup, err := WrapKeyPair(kp, secret)
	if err != nil {
		t.Fatal(err)
	}

	backup.Ciphertext[0] ^= 1

	if _, err := UnwrapKeyPair(backup, secret, kp.PublicKey().String()); !errors.Is(err, ErrInvalidRecoverySecret) {
		t.Errorf("err = %v, want ErrInvalidRecoverySecret", err)
	}
}

func TestUnwrapMissingParams(t *testing.T) {
	t.Parallel()

	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := UnwrapKeyPair(&RecoveryBackup{}, "whatever", kp.PublicKey().String()); err == nil {
		t.Error("expected an error unwrapping a backup without derivation parameters")
	}
}
