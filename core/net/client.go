// Package net provides the JSON-over-HTTP client used to reach Stellar RPC
// services, with retry, timeout and circuit breaker behavior.
//
// Transport failures and 5xx responses are retried with exponential backoff.
// After repeated exhausted requests the circuit opens and calls fail fast with
// REMOTE_UNAVAILABLE until the reset timeout elapses.
//
// Example usage:
//
//	client := net.NewClient(
//	    net.WithTimeout(20*time.Second),
//	    net.WithMaxRetries(5),
//	    net.WithRetryBackoff(2*time.Second),
//	)
//	err := client.PostJSON(ctx, "https://soroban-testnet.stellar.org", req, &resp)
package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// Default configuration values
const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRetries   = 3
	defaultBackoff      = 1 * time.Second
	defaultFailureLimit = 5
	defaultResetTimeout = 60 * time.Second

	maxErrorBody = 4 << 10
)

// Client is an HTTP client with retry, timeout, and circuit breaker capabilities.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryBackoff   time.Duration
	circuitBreaker *circuitBreaker
	logger         *logrus.Entry
}

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-attempt HTTP timeout (default: 30s).
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retry attempts (default: 3).
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBackoff sets the base duration for exponential backoff (default: 1s).
func WithRetryBackoff(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryBackoff = d
	}
}

// WithCircuitBreaker sets how many exhausted requests open the circuit and how
// long it stays open (defaults: 5, 60s).
func WithCircuitBreaker(failureLimit int, resetTimeout time.Duration) ClientOption {
	return func(c *Client) {
		if failureLimit > 0 {
			c.circuitBreaker.failureLimit = failureLimit
		}
		if resetTimeout > 0 {
			c.circuitBreaker.resetTimeout = resetTimeout
		}
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *logrus.Entry) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultBackoff,
		circuitBreaker: &circuitBreaker{
			failureLimit: defaultFailureLimit,
			resetTimeout: defaultResetTimeout,
		},
		logger: logrus.NewEntry(logrus.StandardLogger()).WithField("component", "net"),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Response wraps an HTTP response with convenience methods.
type Response struct {
	*http.Response
}

// DecodeJSON decodes the body into out and closes it.
func (r *Response) DecodeJSON(out any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return errors.NewCoreError(errors.NETWORK_ERROR, "failed to decode response body", err)
	}
	return nil
}

// Post performs an HTTP POST request with a JSON body, retry and circuit
// breaker logic. 4xx responses are returned to the caller unretried.
func (c *Client) Post(ctx context.Context, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

// PostJSON marshals in, posts it to url and decodes a 2xx response into out.
// Any other status is reported as REMOTE_UNAVAILABLE with the status attached.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.NewCoreError(errors.NETWORK_ERROR, "failed to encode request body", err)
	}

	resp, err := c.Post(ctx, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.NewCoreError(
			errors.REMOTE_UNAVAILABLE,
			fmt.Sprintf("unexpected response status: %s", resp.Status),
			nil,
		).With("status", resp.StatusCode).With("body", string(snippet))
	}

	return resp.DecodeJSON(out)
}

// do executes the HTTP request with retry logic and circuit breaker.
func (c *Client) do(req *http.Request) (*Response, error) {
	if !c.circuitBreaker.allowRequest() {
		return nil, errors.NewCoreError(
			errors.REMOTE_UNAVAILABLE,
			"circuit breaker is open",
			nil,
		).With("host", req.URL.Host)
	}

	// Buffer the request body so it can be replayed on retries
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, errors.NewCoreError(errors.NETWORK_ERROR, "failed to read request body", err)
		}
		req.Body.Close()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := req.Context().Err(); err != nil {
			return nil, errors.NewCoreError(errors.NETWORK_ERROR, "request cancelled", err)
		}

		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %s", resp.Status)
		} else {
			c.circuitBreaker.recordSuccess()
			return &Response{resp}, nil
		}

		if attempt < c.maxRetries {
			c.logger.WithFields(logrus.Fields{
				"host":    req.URL.Host,
				"attempt": attempt + 1,
			}).WithError(lastErr).Debug("retrying request")
			if err := c.backoff(req.Context(), attempt); err != nil {
				return nil, errors.NewCoreError(errors.NETWORK_ERROR, "request cancelled", err)
			}
		}
	}

	c.circuitBreaker.recordFailure()
	return nil, errors.NewCoreError(
		errors.REMOTE_UNAVAILABLE,
		fmt.Sprintf("request failed after %d attempts", c.maxRetries+1),
		lastErr,
	).With("host", req.URL.Host)
}

// backoff waits retryBackoff * 2^attempt or until ctx is done.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.retryBackoff * (1 << uint(attempt)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// circuitBreaker implements a simple circuit breaker pattern.
type circuitBreaker struct {
	mu           sync.RWMutex
	failures     int
	lastFailTime time.Time
	failureLimit int
	resetTimeout time.Duration
	state        circuitState
}

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
)

// allowRequest checks if the circuit breaker allows the request to proceed.
// Once resetTimeout has elapsed an open circuit lets one trial request through.
func (cb *circuitBreaker) allowRequest() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	if cb.state == stateClosed {
		return true
	}

	return time.Since(cb.lastFailTime) > cb.resetTimeout
}

// recordSuccess records a successful request and closes the circuit.
func (cb *circuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = stateClosed
}

// recordFailure records an exhausted request and may open the circuit.
func (cb *circuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailTime = time.Now()

	if cb.failures >= cb.failureLimit {
		cb.state = stateOpen
	}
}
