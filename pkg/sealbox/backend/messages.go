package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	messagesTable = "messages"
	contactsTable = "contacts"
)

// Message is a row in the messages table. Body is the wire-form message body:
// either an encrypted envelope or a legacy plaintext.
type Message struct {
	ID         int64     `json:"id,omitempty"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
}

// pairFilter builds the REST or-filter matching both directions of a 1:1
// conversation.
func pairFilter(a, b string) string {
	return fmt.Sprintf("(and(sender_id.eq.%s,receiver_id.eq.%s),and(sender_id.eq.%s,receiver_id.eq.%s))", a, b, b, a)
}

// InsertMessage appends a message row and returns the stored row, including
// the assigned ID and timestamp.
func (c *Client) InsertMessage(ctx context.Context, m Message) (*Message, error) {
	header := http.Header{"Prefer": {"return=representation"}}

	var rows []Message
	if err := c.doJSON(ctx, http.MethodPost, c.restURL(messagesTable, nil), m, &rows, header); err != nil {
		return nil, err
	}

	if len(rows) != 1 {
		return nil, fmt.Errorf("backend: insert returned %d rows", len(rows))
	}

	return &rows[0], nil
}

// ListConversation returns every message exchanged between the two users, in
// ascending creation order.
func (c *Client) ListConversation(ctx context.Context, a, b string) ([]Message, error) {
	q := url.Values{
		"or":     {pairFilter(a, b)},
		"order":  {"created_at.asc"},
		"select": {"*"},
	}

	var rows []Message
	if err := c.doJSON(ctx, http.MethodGet, c.restURL(messagesTable, q), nil, &rows, nil); err != nil {
		return nil, err
	}

	return rows, nil
}

// HasAcceptedContact reports whether the two users have an accepted contact
// relationship in either direction.
func (c *Client) HasAcceptedContact(ctx context.Context, userID, peerID string) (bool, error) {
	q := url.Values{
		"or": {fmt.Sprintf("(and(requester_id.eq.%s,addressee_id.eq.%s),and(requester_id.eq.%s,addressee_id.eq.%s))",
			userID, peerID, peerID, userID)},
		"status": {"eq.accepted"},
		"select": {"requester_id"},
		"limit":  {"1"},
	}

	var rows []struct {
		RequesterID string `json:"requester_id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, c.restURL(contactsTable, q), nil, &rows, nil); err != nil {
		return false, err
	}

	return len(rows) > 0, nil
}

// RecentPeers returns the IDs of users the given user has exchanged messages
// with, most recent conversation first.
func (c *Client) RecentPeers(ctx context.Context, userID string, limit int) ([]string, error) {
	q := url.Values{
		"or":     {fmt.Sprintf("(sender_id.eq.%s,receiver_id.eq.%s)", userID, userID)},
		"order":  {"created_at.desc"},
		"select": {"sender_id,receiver_id"},
		"limit":  {strconv.Itoa(limit * 20)},
	}

	var rows []Message
	if err := c.doJSON(ctx, http.MethodGet, c.restURL(messagesTable, q), nil, &rows, nil); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	peers := make([]string, 0, limit)

	for _, m := range rows {
		peer := m.SenderID
		if peer == userID {
			peer = m.ReceiverID
		}

		if peer == userID || seen[peer] {
			continue
		}

		seen[peer] = true

		peers = append(peers, peer)
		if len(peers) == limit {
			break
		}
	}

	return peers, nil
}
