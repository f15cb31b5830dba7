// Package http wraps the standard HTTP client with request rate limiting.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client is an HTTP client that throttles outgoing requests. It performs no
// retries; retry policy belongs to the caller.
type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// ClientOptions holds options for creating a new Client.
type ClientOptions struct {
	Timeout        time.Duration
	RequestsPerSec int
}

// NewClient creates a new rate-limited HTTP client.
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = 5
	}

	return &Client{
		HTTPClient: &http.Client{
			Timeout: opts.Timeout,
		},
		Limiter: rate.NewLimiter(rate.Every(time.Second), opts.RequestsPerSec),
	}
}

// DoRequest performs an HTTP request after waiting for the rate limiter.
// A non-2xx response is closed and returned as a *StatusError.
func (c *Client) DoRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d (%s)", e.StatusCode, http.StatusText(e.StatusCode))
}
