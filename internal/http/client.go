// Package http provides the shared HTTP client used by the remote image
// generation backends. It retries transient failures with exponential
// backoff and applies common headers.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the client.
type Config struct {
	Timeout           time.Duration
	MaxRetries        int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
	BackoffMultiplier float64
	UserAgent         string
	Headers           map[string]string
}

// Client is a reusable HTTP client with retry logic for transient provider
// failures (connection errors, 429, 5xx).
type Client struct {
	client *http.Client
	config Config
}

// NewClient creates a client, filling zero config fields with defaults.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.BaseRetryDelay == 0 {
		config.BaseRetryDelay = time.Second
	}
	if config.MaxRetryDelay == 0 {
		config.MaxRetryDelay = 30 * time.Second
	}
	if config.BackoffMultiplier == 0 {
		config.BackoffMultiplier = 2.0
	}
	if config.UserAgent == "" {
		config.UserAgent = "imagegen-kit/1.0"
	}
	return &Client{
		client: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		config: config,
	}
}

// Do sends the request, retrying on transient failures. The request body is
// buffered so it can be replayed across retries. A non-2xx response is
// returned to the caller for classification, not treated as an error here,
// except that retryable statuses are retried first.
func (c *Client) Do(ctx context.Context, method, url string, body []byte, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.retryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		c.applyHeaders(req, headers)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if !retryableStatus(resp.StatusCode) || attempt == c.config.MaxRetries {
			return resp, nil
		}

		// Drain and close so the connection can be reused before retrying.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		lastErr = fmt.Errorf("status %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d attempt(s): %w", c.config.MaxRetries+1, lastErr)
}

func (c *Client) applyHeaders(req *http.Request, headers map[string]string) {
	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	d := c.config.BaseRetryDelay
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * c.config.BackoffMultiplier)
		if d >= c.config.MaxRetryDelay {
			return c.config.MaxRetryDelay
		}
	}
	return d
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
