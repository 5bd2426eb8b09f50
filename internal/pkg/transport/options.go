package transport

import (
	"net/http"
	"time"
)

func WithForwardedFor(enabled bool) func(*Client) {
	return func(c *Client) {
		c.useXFF = enabled
	}
}

func WithTimeout(d time.Duration) func(*Client) {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries sets how many times a transport failure is retried after the
// first attempt.
func WithRetries(n uint64) func(*Client) {
	return func(c *Client) {
		c.retries = n
	}
}

func WithRetryDelay(d time.Duration) func(*Client) {
	return func(c *Client) {
		c.retryDelay = d
	}
}

func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.httpClient = hc
	}
}
