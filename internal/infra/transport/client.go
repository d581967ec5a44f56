package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"iran-payment/internal/domain"
)

// Requester is the synchronous HTTP primitive gateway adapters speak through:
// one request, raw response bytes back. Transport failures surface as
// domain.ErrCommunication; no retry policy lives here.
type Requester interface {
	Request(ctx context.Context, url, method string, body []byte) ([]byte, error)
}

type Client struct {
	http *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

var _ Requester = (*Client)(nil)

func (c *Client) Request(ctx context.Context, url, method string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCommunication, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCommunication, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrCommunication, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, fmt.Errorf("%w: http %d", domain.ErrCommunication, resp.StatusCode)
	}
	return raw, nil
}
