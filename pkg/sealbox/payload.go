package sealbox

import (
	"encoding/base64"
	"strings"
)

// EnvelopeKind discriminates the stored forms of a message body.
type EnvelopeKind int

const (
	// EnvelopeLegacy is an unencrypted body from before encryption was
	// deployed. It is passed through unchanged for backward compatibility.
	EnvelopeLegacy EnvelopeKind = iota

	// EnvelopeEncrypted is an encrypted body of the form
	// "<base64 iv>:<base64 ciphertext>".
	EnvelopeEncrypted
)

// envelopeSeparator joins the IV and ciphertext segments of an encrypted
// body. Its absence signals a legacy plaintext body.
const envelopeSeparator = ":"

// Envelope is the parsed form of a stored message body.
type Envelope struct {
	Kind       EnvelopeKind
	Legacy     string // set when Kind is EnvelopeLegacy
	IV         []byte // set when Kind is EnvelopeEncrypted
	Ciphertext []byte // set when Kind is EnvelopeEncrypted
}

// ParseEnvelope parses a stored message body. A body without the separator is
// legacy plaintext; a body with the separator but invalid base64 segments is
// undisplayable and yields ErrInvalidCiphertext.
func ParseEnvelope(body string) (*Envelope, error) {
	ivText, ctText, ok := strings.Cut(body, envelopeSeparator)
	if !ok {
		return &Envelope{Kind: EnvelopeLegacy, Legacy: body}, nil
	}

	iv, err := base64.StdEncoding.DecodeString(ivText)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	ciphertext, err := base64.StdEncoding.DecodeString(ctText)
	if err != nil {
		return nil, ErrInvalidCiphertext
	}

	return &Envelope{Kind: EnvelopeEncrypted, IV: iv, Ciphertext: ciphertext}, nil
}

// EncodeEnvelope returns the wire form of an encrypted body.
func EncodeEnvelope(iv, ciphertext []byte) string {
	return base64.StdEncoding.EncodeToString(iv) + envelopeSeparator +
		base64.StdEncoding.EncodeToString(ciphertext)
}

// ContentKind discriminates the decrypted forms of a message body.
type ContentKind int

const (
	// ContentText is an ordinary text message.
	ContentText ContentKind = iota

	// ContentImageRef references an encrypted image attachment in object
	// storage.
	ContentImageRef
)

// imageMarker prefixes a decrypted body which references an encrypted image
// attachment: "__img__:<mime>:<storagePath>".
const imageMarker = "__img__"

// Content is the parsed form of a decrypted message body.
type Content struct {
	Kind ContentKind
	Text string // set when Kind is ContentText
	MIME string // set when Kind is ContentImageRef
	Path string // set when Kind is ContentImageRef
}

// ParseContent parses a decrypted message body into either plain text or an
// image attachment reference.
func ParseContent(plaintext string) Content {
	rest, ok := strings.CutPrefix(plaintext, imageMarker+":")
	if !ok {
		return Content{Kind: ContentText, Text: plaintext}
	}

	mime, path, ok := strings.Cut(rest, ":")
	if !ok || path == "" {
		// A malformed marker is shown as text rather than guessed at.
		return Content{Kind: ContentText, Text: plaintext}
	}

	return Content{Kind: ContentImageRef, MIME: mime, Path: path}
}

// EncodeImageRef returns the marker body for an encrypted image attachment.
func EncodeImageRef(mime, path string) string {
	return imageMarker + ":" + mime + ":" + path
}
