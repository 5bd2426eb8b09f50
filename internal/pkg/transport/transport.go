// Package transport talks to the device's local HTTP API: one form-encoded
// POST per request, retried on transport failures only.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	// ErrTransport covers timeouts, disconnects and connection errors. These
	// are retried.
	ErrTransport = errors.New("transport error")
	// ErrProtocol covers non-200 responses, rejected requests and bodies that
	// do not decode. These are never retried.
	ErrProtocol = errors.New("protocol error")
)

const (
	forwardedFor = "5.8.8.8"

	defaultTimeout    = 10 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = 500 * time.Millisecond

	// deadlineFactor bounds a whole retry sequence to a multiple of the
	// per-attempt timeout.
	deadlineFactor = 10
)

type Client struct {
	url        string
	password   string
	useXFF     bool
	timeout    time.Duration
	retries    uint64
	retryDelay time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func New(host, password string, options ...func(*Client)) *Client {
	c := &Client{
		url:        "http://" + strings.TrimSuffix(host, "/") + "/",
		password:   password,
		timeout:    defaultTimeout,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		httpClient: &http.Client{
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		logger: zap.L(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Deadline is the budget for one Post including every retry.
func (c *Client) Deadline() time.Duration {
	return deadlineFactor * c.timeout
}

// Post sends body and returns the response text. Transport failures are
// retried up to the configured count; everything else fails immediately.
func (c *Client) Post(ctx context.Context, body string, headers map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Deadline())
	defer cancel()

	attempt := 0
	op := func() (string, error) {
		attempt++
		return c.post(ctx, body, headers)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("retrying request",
			zap.String("url", c.url),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryDelay), c.retries), ctx)
	text, err := backoff.RetryNotifyWithData(op, policy, notify)
	if err != nil {
		c.logger.Error("error reading from http",
			zap.String("url", c.url),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return "", err
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, body string, headers map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.useXFF {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("unexpected status code", zap.Int("status", resp.StatusCode), zap.String("url", c.url))
		return "", backoff.Permanent(fmt.Errorf("%w: status %d", ErrProtocol, resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return string(data), nil
}
