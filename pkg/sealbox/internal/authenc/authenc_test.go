package authenc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/codahale/gubbins/assert"
)

func TestSealOpenRoundTrip(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x2a}, KeySize)

	iv, ciphertext, err := Seal(key, []byte("hello, sealed world"))
	if err != nil {
		t.Fatal(err)
	}

	plaintext, err := Open(key, iv, ciphertext)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "plaintext", "hello, sealed world", string(plaintext))
}

func TestOpenTamperedCiphertext(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x2a}, KeySize)

	iv, ciphertext, err := Seal(key, []byte("untouchable"))
	if err != nil {
		t.Fatal(err)
	}

	for i := range ciphertext {
		ciphertext[i] ^= 1

		if _, err := Open(key, iv, ciphertext); !errors.Is(err, ErrInvalidCiphertext) {
			t.Fatalf("flipped bit in byte %d went undetected", i)
		}

		ciphertext[i] ^= 1
	}

	iv[0] ^= 1
	if _, err := Open(key, iv, ciphertext); !errors.Is(err, ErrInvalidCiphertext) {
		t.Error("flipped bit in IV went undetected")
	}
}

func TestOpenWrongKey(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x2a}, KeySize)

	iv, ciphertext, err := Seal(key, []byte("secret"))
	if err != nil {
		t.Fatal(err)
	}

	other := bytes.Repeat([]byte{0x2b}, KeySize)
	if _, err := Open(other, iv, ciphertext); !errors.Is(err, ErrInvalidCiphertext) {
		t.Error("expected ErrInvalidCiphertext with the wrong key")
	}
}

func TestPrefixedRoundTrip(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x0f}, KeySize)
	plain := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	buf, err := SealPrefixed(key, plain)
	if err != nil {
		t.Fatal(err)
	}

	if len(buf) != IVSize+len(plain)+TagSize {
		t.Fatalf("prefixed buffer is %d bytes, want %d", len(buf), IVSize+len(plain)+TagSize)
	}

	got, err := OpenPrefixed(key, buf)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "plaintext", plain, got)
}

func TestOpenPrefixedTruncated(t *testing.T) {
	t.Parallel()

	key := bytes.Repeat([]byte{0x0f}, KeySize)

	if _, err := OpenPrefixed(key, []byte("short")); !errors.Is(err, ErrInvalidCiphertext) {
		t.Error("expected ErrInvalidCiphertext for a truncated buffer")
	}
}
