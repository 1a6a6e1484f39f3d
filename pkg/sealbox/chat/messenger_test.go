package chat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codahale/gubbins/assert"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/sealbox/sealbox/pkg/sealbox"
	"github.com/sealbox/sealbox/pkg/sealbox/backend"
)

// memDirectory publishes public keys in memory.
type memDirectory struct {
	mu   sync.Mutex
	keys map[string]string
}

func (d *memDirectory) UpsertPublicKey(_ context.Context, userID, publicKeyExport string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.keys[userID] = publicKeyExport

	return nil
}

func (d *memDirectory) KeyRecord(_ context.Context, userID string) (*sealbox.KeyRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	export, ok := d.keys[userID]
	if !ok {
		return nil, nil
	}

	return &sealbox.KeyRecord{UserID: userID, PublicKeyExport: export}, nil
}

func (d *memDirectory) UpdateRecoveryBackup(context.Context, string, *sealbox.RecoveryBackup) error {
	return nil
}

// memKV is an in-memory LocalStore.
type memKV map[string]string

func (s memKV) GetItem(key string) (string, bool, error) {
	v, ok := s[key]
	return v, ok, nil
}

func (s memKV) SetItem(key, value string) error {
	s[key] = value
	return nil
}

// nopPrompter declines everything.
type nopPrompter struct{}

func (nopPrompter) ConfirmSecretSaved(context.Context, string) (bool, error) {
	return false, nil
}

func (nopPrompter) AskRecoverySecret(context.Context) (string, bool, error) {
	return "", false, nil
}

// memBackend implements Store and BlobStore in memory.
type memBackend struct {
	mu       sync.Mutex
	nextID   int64
	now      time.Time
	rows     []backend.Message
	contacts map[string]bool
	blobs    map[string][]byte
}

func newMemBackend(contactPairs ...[2]string) *memBackend {
	b := &memBackend{
		now:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		contacts: make(map[string]bool),
		blobs:    make(map[string][]byte),
	}

	for _, p := range contactPairs {
		b.contacts[p[0]+"/"+p[1]] = true
	}

	return b
}

func (b *memBackend) InsertMessage(_ context.Context, m backend.Message) (*backend.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.now = b.now.Add(time.Second)

	m.ID = b.nextID
	m.CreatedAt = b.now
	b.rows = append(b.rows, m)

	return &m, nil
}

func (b *memBackend) ListConversation(_ context.Context, x, y string) ([]backend.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []backend.Message

	for _, m := range b.rows {
		if (m.SenderID == x && m.ReceiverID == y) || (m.SenderID == y && m.ReceiverID == x) {
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (b *memBackend) HasAcceptedContact(_ context.Context, userID, peerID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.contacts[userID+"/"+peerID] || b.contacts[peerID+"/"+userID], nil
}

func (b *memBackend) RecentPeers(_ context.Context, userID string, limit int) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := make(map[string]bool)

	var peers []string

	for i := len(b.rows) - 1; i >= 0 && len(peers) < limit; i-- {
		m := b.rows[i]

		peer := m.SenderID
		if peer == userID {
			peer = m.ReceiverID
		}

		if (m.SenderID != userID && m.ReceiverID != userID) || seen[peer] {
			continue
		}

		seen[peer] = true
		peers = append(peers, peer)
	}

	return peers, nil
}

func (b *memBackend) UploadBlob(_ context.Context, path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[path] = data

	return nil
}

func (b *memBackend) DownloadBlob(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.blobs[path]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", path)
	}

	return data, nil
}

// stubSubscriber replays canned rows, then blocks until cancelled.
type stubSubscriber struct {
	rows []backend.Message
}

func (s *stubSubscriber) StreamInserts(ctx context.Context, out chan<- backend.Message) error {
	for _, r := range s.rows {
		select {
		case out <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	<-ctx.Done()

	return ctx.Err()
}

func newChatSession(t *testing.T, userID string, dir *memDirectory) *sealbox.Session {
	t.Helper()

	s := sealbox.NewSession(userID, dir, memKV{}, nopPrompter{}, zerolog.Nop())
	if _, err := s.LoadOrCreateKeyPair(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := s.PublishIdentity(context.Background()); err != nil {
		t.Fatal(err)
	}

	return s
}

func newMessengerPair(t *testing.T, be *memBackend, sub Subscriber) (*Messenger, *Messenger) {
	t.Helper()

	dir := &memDirectory{keys: make(map[string]string)}
	alice := newChatSession(t, "alice", dir)
	bob := newChatSession(t, "bob", dir)

	return New(alice, be, be, sub, zerolog.Nop()), New(bob, be, be, sub, zerolog.Nop())
}

func TestSendTextStoresEnvelope(t *testing.T) {
	t.Parallel()

	be := newMemBackend([2]string{"alice", "bob"})
	aliceM, bobM := newMessengerPair(t, be, &stubSubscriber{})

	if _, err := aliceM.SendText(context.Background(), "bob", "see you at noon"); err != nil {
		t.Fatal(err)
	}

	// The stored body is an envelope, never the plaintext.
	if body := be.rows[0].Body; !strings.Contains(body, ":") || strings.Contains(body, "noon") {
		t.Errorf("stored body %q leaks plaintext", body)
	}

	msgs, err := bobM.History(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 1 {
		t.Fatalf("history has %d messages, want 1", len(msgs))
	}

	assert.Equal(t, "kind", KindText, msgs[0].Kind)
	assert.Equal(t, "text", "see you at noon", msgs[0].Text)
}

func TestSendTextRequiresContact(t *testing.T) {
	t.Parallel()

	be := newMemBackend() // no accepted contacts
	aliceM, _ := newMessengerPair(t, be, &stubSubscriber{})

	if _, err := aliceM.SendText(context.Background(), "bob", "hi"); !errors.Is(err, ErrNotContacts) {
		t.Errorf("err = %v, want ErrNotContacts", err)
	}

	if len(be.rows) != 0 {
		t.Error("message stored despite contact gate")
	}
}

func TestSendImageRoundTrip(t *testing.T) {
	t.Parallel()

	be := newMemBackend([2]string{"alice", "bob"})
	aliceM, bobM := newMessengerPair(t, be, &stubSubscriber{})

	img := []byte{0x89, 'P', 'N', 'G', 1, 2, 3, 4}
	if _, err := aliceM.SendImage(context.Background(), "bob", "image/png", img); err != nil {
		t.Fatal(err)
	}

	// The uploaded blob is not the raw image.
	for path, blob := range be.blobs {
		if bytes.Contains(blob, img) {
			t.Errorf("blob at %s contains plaintext image bytes", path)
		}
	}

	msgs, err := bobM.History(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 1 {
		t.Fatalf("history has %d messages, want 1", len(msgs))
	}

	assert.Equal(t, "kind", KindImage, msgs[0].Kind)
	assert.Equal(t, "mime", "image/png", msgs[0].MIME)
	assert.Equal(t, "image bytes", img, msgs[0].Image)
}

func TestHistoryMixedBodies(t *testing.T) {
	t.Parallel()

	be := newMemBackend([2]string{"alice", "bob"})
	aliceM, bobM := newMessengerPair(t, be, &stubSubscriber{})

	// A legacy plaintext row from before encryption rolled out.
	if _, err := be.InsertMessage(context.Background(), backend.Message{
		SenderID: "bob", ReceiverID: "alice", Body: "old plain message",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := aliceM.SendText(context.Background(), "bob", "new sealed message"); err != nil {
		t.Fatal(err)
	}

	// A row that authenticates under nobody's key.
	if _, err := be.InsertMessage(context.Background(), backend.Message{
		SenderID: "bob", ReceiverID: "alice", Body: "AAAA:BBBB",
	}); err != nil {
		t.Fatal(err)
	}

	msgs, err := bobM.History(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	var texts []string
	for _, m := range msgs {
		texts = append(texts, m.Text)
	}

	// The undecryptable row is suppressed entirely; order is send order.
	want := []string{"old plain message", "new sealed message"}
	if diff := cmp.Diff(want, texts); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestHistoryBrokenImagePlaceholder(t *testing.T) {
	t.Parallel()

	be := newMemBackend([2]string{"alice", "bob"})
	aliceM, bobM := newMessengerPair(t, be, &stubSubscriber{})

	if _, err := aliceM.SendImage(context.Background(), "bob", "image/jpeg", []byte("jpeg bytes")); err != nil {
		t.Fatal(err)
	}

	// The blob vanishes from storage; the message row survives.
	be.mu.Lock()
	be.blobs = make(map[string][]byte)
	be.mu.Unlock()

	msgs, err := bobM.History(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}

	if len(msgs) != 1 {
		t.Fatalf("history has %d messages, want 1", len(msgs))
	}

	assert.Equal(t, "kind", KindBrokenImage, msgs[0].Kind)
	assert.Equal(t, "mime", "image/jpeg", msgs[0].MIME)

	if msgs[0].Image != nil {
		t.Error("placeholder carries image bytes")
	}
}

func TestHistoryOrderedBySendTime(t *testing.T) {
	t.Parallel()

	be := newMemBackend([2]string{"alice", "bob"})
	aliceM, bobM := newMessengerPair(t, be, &stubSubscriber{})

	for i := 0; i < 8; i++ {
		sender := aliceM
		if i%2 == 1 {
			sender = bobM
		}

		if _, err := sender.SendText(context.Background(), peerOf(sender), fmt.Sprintf("message %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := aliceM.History(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}

	for i, m := range msgs {
		if want := fmt.Sprintf("message %d", i); m.Text != want {
			t.Errorf("msgs[%d].Text = %q, want %q", i, m.Text, want)
		}
	}
}

func peerOf(m *Messenger) string {
	if m.session.UserID() == "alice" {
		return "bob"
	}

	return "alice"
}

func TestListenDeliversAndDedupes(t *testing.T) {
	t.Parallel()

	be := newMemBackend([2]string{"alice", "bob"})

	dir := &memDirectory{keys: make(map[string]string)}
	alice := newChatSession(t, "alice", dir)
	bob := newChatSession(t, "bob", dir)

	aliceM := New(alice, be, be, &stubSubscriber{}, zerolog.Nop())

	fromAlice, err := aliceM.SendText(context.Background(), "bob", "incoming")
	if err != nil {
		t.Fatal(err)
	}

	bobBody, err := bob.EncryptText(context.Background(), "alice", "my own echo")
	if err != nil {
		t.Fatal(err)
	}

	echo := backend.Message{ID: 99, SenderID: "bob", ReceiverID: "alice", Body: bobBody, CreatedAt: time.Now()}
	unrelated := backend.Message{ID: 100, SenderID: "carol", ReceiverID: "dave", Body: "whatever", CreatedAt: time.Now()}

	sub := &stubSubscriber{rows: []backend.Message{echo, unrelated, *fromAlice}}
	bobM := New(bob, be, be, sub, zerolog.Nop())

	// Bob already rendered his own optimistic send.
	bobM.markRendered(echo.ID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out := make(chan DisplayMessage, 4)
	done := make(chan error, 1)

	go func() { done <- bobM.Listen(ctx, "alice", out) }()

	got := <-out
	assert.Equal(t, "sender", "alice", got.SenderID)
	assert.Equal(t, "text", "incoming", got.Text)

	cancel()
	<-done

	if len(out) != 0 {
		extra := <-out
		t.Errorf("unexpected extra message: %+v", extra)
	}
}
