package backend

import (
	"net/url"
	"strings"
	"testing"

	"github.com/codahale/gubbins/assert"
	"github.com/rs/zerolog"
)

func TestRealtimeURL(t *testing.T) {
	t.Parallel()

	c := NewClient(Config{
		BaseURL: "https://proj.example.co",
		APIKey:  "an on+key/with=odd&chars",
	}, zerolog.Nop())

	raw := c.realtimeURL()
	if !strings.HasPrefix(raw, "wss://proj.example.co/realtime/v1/websocket?") {
		t.Fatalf("realtime URL = %q, want wss scheme and websocket path", raw)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "apikey", "an on+key/with=odd&chars", u.Query().Get("apikey"))
	assert.Equal(t, "vsn", "1.0.0", u.Query().Get("vsn"))
}
