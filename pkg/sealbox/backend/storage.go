package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// objectURL builds the storage endpoint URL for a path within the configured
// bucket.
func (c *Client) objectURL(path string) string {
	return c.cfg.BaseURL + "/storage/v1/object/" + c.cfg.Bucket + "/" + strings.TrimPrefix(path, "/")
}

// UploadBlob stores raw bytes at the given path in the attachment bucket. The
// bytes are already encrypted; the bucket never sees plaintext.
func (c *Client) UploadBlob(ctx context.Context, path string, data []byte) error {
	req, err := c.newRequest(ctx, http.MethodPost, c.objectURL(path), bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

		return fmt.Errorf("backend: upload %s: %s: %s", path, resp.Status, strings.TrimSpace(string(msg)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

// DownloadBlob fetches the raw bytes stored at the given path.
func (c *Client) DownloadBlob(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.objectURL(path), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend: download %s: %s", path, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
