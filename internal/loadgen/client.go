// Package loadgen drives plain HTTP traffic against the target: a bounded
// virtual-user load run plus a passive security-header inspection of the
// responses it already collected.
package loadgen

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kv9x/dowser-cli/api/schemas"
)

// maxBodyBytes caps how much of a response body is retained per request.
const maxBodyBytes = 1 << 20

// Client is the net/http-backed implementation of the HTTPClient boundary.
type Client struct {
	hc *http.Client
}

var _ schemas.HTTPClient = (*Client)(nil)

// NewClient builds a client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{hc: &http.Client{Timeout: timeout}}
}

// Do performs one request and flattens the response.
func (c *Client) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (*schemas.HTTPResponse, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s %s: %w", method, url, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body %s: %w", url, err)
	}
	return &schemas.HTTPResponse{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    data,
	}, nil
}
