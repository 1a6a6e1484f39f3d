package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	messagesTopic     = "realtime:public:messages"
	heartbeatInterval = 25 * time.Second
	reconnectDelay    = 3 * time.Second
)

// phxMessage is the framing of the realtime socket's channel protocol.
type phxMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// insertPayload is the payload of an INSERT change event.
type insertPayload struct {
	Record Message `json:"record"`
}

// realtimeURL converts the project base URL into the realtime websocket URL.
func (c *Client) realtimeURL() string {
	u := c.cfg.BaseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}

	q := url.Values{
		"apikey": {c.cfg.APIKey},
		"vsn":    {"1.0.0"},
	}

	return u + "/realtime/v1/websocket?" + q.Encode()
}

// StreamInserts subscribes to INSERT events on the messages table and
// delivers each new row on out until ctx is cancelled. Dropped connections
// are redialled after a short delay; the subscription itself never fails
// permanently.
func (c *Client) StreamInserts(ctx context.Context, out chan<- Message) error {
	for {
		if err := c.runSocket(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			c.log.Warn().Err(err).Msg("realtime socket dropped; reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

// runSocket dials the realtime endpoint, joins the messages channel, and
// pumps events until the connection drops or ctx is cancelled. All writes
// happen on this goroutine; reads run on a helper goroutine.
func (c *Client) runSocket(ctx context.Context, out chan<- Message) error {
	header := http.Header{"Authorization": {"Bearer " + c.cfg.APIKey}}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.realtimeURL(), header)
	if err != nil {
		return err
	}

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	defer func() { _ = conn.Close() }()

	ref := 0
	nextRef := func() string {
		ref++
		return strconv.Itoa(ref)
	}

	join := phxMessage{
		Topic:   messagesTopic,
		Event:   "phx_join",
		Payload: json.RawMessage("{}"),
		Ref:     nextRef(),
	}
	if err := conn.WriteJSON(join); err != nil {
		return err
	}

	incoming := make(chan phxMessage)
	readErr := make(chan error, 1)

	go func() {
		for {
			var msg phxMessage
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}

			select {
			case incoming <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best effort; the deferred Close unblocks the reader regardless.
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))

			return ctx.Err()

		case err := <-readErr:
			return err

		case <-heartbeat.C:
			hb := phxMessage{
				Topic:   "phoenix",
				Event:   "heartbeat",
				Payload: json.RawMessage("{}"),
				Ref:     nextRef(),
			}
			if err := conn.WriteJSON(hb); err != nil {
				return err
			}

		case msg := <-incoming:
			if msg.Topic != messagesTopic || msg.Event != "INSERT" {
				continue
			}

			var payload insertPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				c.log.Warn().Err(err).Msg("undecodable realtime payload; skipping")
				continue
			}

			select {
			case out <- payload.Record:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
