// Package chat integrates the encryption core with the backend message
// pipeline: messages are encrypted before insertion and decrypted after
// retrieval, so the backend only ever stores envelopes.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sealbox/sealbox/pkg/sealbox"
	"github.com/sealbox/sealbox/pkg/sealbox/backend"
)

// ErrNotContacts is returned when sending to a peer without an accepted
// contact relationship.
var ErrNotContacts = errors.New("peer is not an accepted contact")

// Store is the subset of backend row operations the messenger needs.
type Store interface {
	InsertMessage(ctx context.Context, m backend.Message) (*backend.Message, error)
	ListConversation(ctx context.Context, a, b string) ([]backend.Message, error)
	HasAcceptedContact(ctx context.Context, userID, peerID string) (bool, error)
	RecentPeers(ctx context.Context, userID string, limit int) ([]string, error)
}

// BlobStore stores and fetches encrypted attachment bytes.
type BlobStore interface {
	UploadBlob(ctx context.Context, path string, data []byte) error
	DownloadBlob(ctx context.Context, path string) ([]byte, error)
}

// Subscriber delivers newly inserted message rows as they arrive.
type Subscriber interface {
	StreamInserts(ctx context.Context, out chan<- backend.Message) error
}

// Kind discriminates the renderable message variants.
type Kind int

const (
	// KindText is a plain text message.
	KindText Kind = iota

	// KindImage is an image attachment with decrypted bytes.
	KindImage

	// KindBrokenImage is an image attachment whose bytes could not be
	// fetched or decrypted. The message is still shown, as a placeholder.
	KindBrokenImage
)

// DisplayMessage is a fully decrypted message, ready to render.
type DisplayMessage struct {
	ID         int64
	SenderID   string
	ReceiverID string
	SentAt     time.Time
	Kind       Kind
	Text       string
	MIME       string
	Image      []byte
}

// Messenger is the encrypting message pipeline for one user. It is safe for
// concurrent use.
type Messenger struct {
	session *sealbox.Session
	store   Store
	blobs   BlobStore
	sub     Subscriber
	log     zerolog.Logger

	mu       sync.Mutex
	rendered map[int64]bool
}

// New creates a messenger on top of an initialized session.
func New(session *sealbox.Session, store Store, blobs BlobStore, sub Subscriber, log zerolog.Logger) *Messenger {
	return &Messenger{
		session:  session,
		store:    store,
		blobs:    blobs,
		sub:      sub,
		log:      log.With().Str("component", "chat").Logger(),
		rendered: make(map[int64]bool),
	}
}

// checkContact verifies the accepted-contact relationship gating every send.
func (m *Messenger) checkContact(ctx context.Context, peerID string) error {
	ok, err := m.store.HasAcceptedContact(ctx, m.session.UserID(), peerID)
	if err != nil {
		return err
	}

	if !ok {
		return ErrNotContacts
	}

	return nil
}

// SendText encrypts a text message for the peer and inserts it. On error
// nothing has been stored, so the caller still holds the plaintext for retry.
func (m *Messenger) SendText(ctx context.Context, peerID, text string) (*backend.Message, error) {
	if err := m.checkContact(ctx, peerID); err != nil {
		return nil, err
	}

	body, err := m.session.EncryptText(ctx, peerID, text)
	if err != nil {
		return nil, err
	}

	stored, err := m.store.InsertMessage(ctx, backend.Message{
		SenderID:   m.session.UserID(),
		ReceiverID: peerID,
		Body:       body,
	})
	if err != nil {
		return nil, err
	}

	m.markRendered(stored.ID)

	return stored, nil
}

// SendImage encrypts the image bytes, uploads them to the attachment bucket,
// and sends the encrypted image marker as the message body. The storage path
// is unique per message: <sender>/<peer>/<unix-nanos>.
func (m *Messenger) SendImage(ctx context.Context, peerID, mime string, data []byte) (*backend.Message, error) {
	if err := m.checkContact(ctx, peerID); err != nil {
		return nil, err
	}

	enc, err := m.session.EncryptBytes(ctx, peerID, data)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/%s/%d", m.session.UserID(), peerID, time.Now().UnixNano())
	if err := m.blobs.UploadBlob(ctx, path, enc); err != nil {
		return nil, err
	}

	body, err := m.session.EncryptText(ctx, peerID, sealbox.EncodeImageRef(mime, path))
	if err != nil {
		return nil, err
	}

	stored, err := m.store.InsertMessage(ctx, backend.Message{
		SenderID:   m.session.UserID(),
		ReceiverID: peerID,
		Body:       body,
	})
	if err != nil {
		return nil, err
	}

	m.markRendered(stored.ID)

	return stored, nil
}

// History returns the conversation with the peer, decrypted and ordered by
// send time. Each message is decrypted independently and concurrently; a
// message that fails to decrypt is dropped without surfacing an error, and an
// image whose bytes cannot be recovered becomes a broken-image placeholder.
// The final order never depends on decryption completion order.
func (m *Messenger) History(ctx context.Context, peerID string) ([]DisplayMessage, error) {
	rows, err := m.store.ListConversation(ctx, m.session.UserID(), peerID)
	if err != nil {
		return nil, err
	}

	results := make([]*DisplayMessage, len(rows))

	var wg sync.WaitGroup
	for i, row := range rows {
		wg.Add(1)

		go func(i int, row backend.Message) {
			defer wg.Done()

			dm, err := m.display(ctx, row)
			if err != nil {
				m.log.Debug().Int64("id", row.ID).Err(err).Msg("undecryptable message suppressed")
				return
			}

			results[i] = dm
		}(i, row)
	}
	wg.Wait()

	seen := make(map[int64]bool, len(rows))
	out := make([]DisplayMessage, 0, len(rows))

	for _, dm := range results {
		if dm == nil || seen[dm.ID] {
			continue
		}

		seen[dm.ID] = true

		out = append(out, *dm)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].SentAt.Equal(out[j].SentAt) {
			return out[i].SentAt.Before(out[j].SentAt)
		}

		return out[i].ID < out[j].ID
	})

	return out, nil
}

// Listen subscribes to new messages in the conversation with the peer and
// delivers them decrypted on out until ctx is cancelled. Messages this
// messenger already rendered, including echoes of its own sends, are skipped.
func (m *Messenger) Listen(ctx context.Context, peerID string, out chan<- DisplayMessage) error {
	raw := make(chan backend.Message, 16)

	errc := make(chan error, 1)
	go func() { errc <- m.sub.StreamInserts(ctx, raw) }()

	me := m.session.UserID()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-errc:
			return err

		case row := <-raw:
			pair := (row.SenderID == me && row.ReceiverID == peerID) ||
				(row.SenderID == peerID && row.ReceiverID == me)
			if !pair || m.alreadyRendered(row.ID) {
				continue
			}

			dm, err := m.display(ctx, row)
			if err != nil {
				m.log.Debug().Int64("id", row.ID).Err(err).Msg("undecryptable message suppressed")
				continue
			}

			m.markRendered(row.ID)

			select {
			case out <- *dm:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Contacts returns the peers with existing conversations, most recent first.
func (m *Messenger) Contacts(ctx context.Context) ([]string, error) {
	return m.store.RecentPeers(ctx, m.session.UserID(), 20)
}

// display decrypts a stored row into a renderable message. A text decryption
// failure is an error (the caller suppresses the message); an image fetch or
// decryption failure downgrades the message to a placeholder instead, since
// the envelope itself authenticated.
func (m *Messenger) display(ctx context.Context, row backend.Message) (*DisplayMessage, error) {
	peer := row.SenderID
	if peer == m.session.UserID() {
		peer = row.ReceiverID
	}

	text, err := m.session.DecryptText(ctx, peer, row.Body)
	if err != nil {
		return nil, err
	}

	dm := &DisplayMessage{
		ID:         row.ID,
		SenderID:   row.SenderID,
		ReceiverID: row.ReceiverID,
		SentAt:     row.CreatedAt,
	}

	content := sealbox.ParseContent(text)
	switch content.Kind {
	case sealbox.ContentImageRef:
		dm.Kind = KindImage
		dm.MIME = content.MIME

		img, err := m.fetchImage(ctx, peer, content.Path)
		if err != nil {
			m.log.Debug().Int64("id", row.ID).Err(err).Msg("image unrecoverable; showing placeholder")

			dm.Kind = KindBrokenImage

			return dm, nil
		}

		dm.Image = img

	default:
		dm.Kind = KindText
		dm.Text = content.Text
	}

	return dm, nil
}

// fetchImage downloads and decrypts an attachment.
func (m *Messenger) fetchImage(ctx context.Context, peerID, path string) ([]byte, error) {
	enc, err := m.blobs.DownloadBlob(ctx, path)
	if err != nil {
		return nil, err
	}

	return m.session.DecryptBytes(ctx, peerID, enc)
}

func (m *Messenger) markRendered(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rendered[id] = true
}

func (m *Messenger) alreadyRendered(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.rendered[id]
}
