// Package backend is a client for the hosted backend service: row reads and
// writes through its REST interface, object storage for attachments, a
// realtime socket for message inserts, and the device-local key-value store.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config carries everything needed to reach the backend project.
type Config struct {
	// BaseURL is the project's root URL, e.g. https://abc.example.co.
	BaseURL string

	// APIKey is the project's public API key, sent on every request.
	APIKey string

	// AccessToken is the authenticated user's bearer token. When empty, the
	// API key is used as the bearer token.
	AccessToken string

	// Bucket is the storage bucket holding encrypted attachments.
	Bucket string
}

// Client is a thin HTTP client for the backend service. It is safe for
// concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	log  zerolog.Logger
}

// NewClient creates a client for the given project.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log.With().Str("component", "backend").Logger(),
	}
}

// restURL builds a REST endpoint URL for the given table and query.
func (c *Client) restURL(table string, query url.Values) string {
	u := c.cfg.BaseURL + "/rest/v1/" + table
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return u
}

// newRequest creates a request with the project's auth headers attached.
func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}

	token := c.cfg.AccessToken
	if token == "" {
		token = c.cfg.APIKey
	}

	req.Header.Set("apikey", c.cfg.APIKey)
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

// doJSON sends a request with an optional JSON body and decodes the JSON
// response into out (which may be nil). Non-2xx responses become errors
// carrying the response body.
func (c *Client) doJSON(ctx context.Context, method, u string, in, out interface{}, header http.Header) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}

		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, u, body)
	if err != nil {
		return err
	}

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("backend: %s %s: %s: %s", method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
