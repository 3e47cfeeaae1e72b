// Package consoleclient is a Go client for the console API. Credentials travel in the
// request context and a rejected credential surfaces as ErrSessionExpired.
//
// Only replayable calls are retried: reads, login, absolute station updates and Start, which the
// server treats as idempotent for the right token. Decide, Cancel, Complete and DeleteBooking are
// sent once; after a transport or gateway error their outcome is unknown and the caller should
// re-read the booking before trying again.
package consoleclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// RetryPolicy bounds retries of transport failures and gateway errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy makes up to four attempts, waiting 200ms, 400ms and 800ms in between.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 4, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}

func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseDelay << uint(attempt)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

type credentialKey struct{}

// WithCredential returns ctx carrying a bearer token.
func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

// CredentialFromContext returns the bearer token stored in ctx.
func CredentialFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(credentialKey{}).(string)
	return token, ok && token != ""
}

// Client calls the console API.
type Client struct {
	baseURL string
	client  HTTPDoer
	retry   RetryPolicy
	sleep   func(ctx context.Context, d time.Duration) error
}

// Option customises Client.
type Option func(*Client)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// New builds a client for baseURL. A nil doer means an *http.Client with a 15s timeout.
func New(baseURL string, doer HTTPDoer, opts ...Option) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  doer,
		retry:   DefaultRetryPolicy,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

type request struct {
	method string
	path   string
	in     interface{}
	out    interface{}

	authenticated bool
	// replayable requests may be sent again after a transport or gateway failure.
	replayable bool
}

// call sends one logical request, retrying transient failures of replayable requests, and
// decodes a 2xx JSON body into out.
func (c *Client) call(ctx context.Context, r request) error {
	var body []byte
	if r.in != nil {
		var err error
		if body, err = json.Marshal(r.in); err != nil {
			return fmt.Errorf("consoleclient: encode request: %w", err)
		}
	}
	var token string
	if r.authenticated {
		var ok bool
		if token, ok = CredentialFromContext(ctx); !ok {
			return ErrNoCredential
		}
	}

	attempts := 1
	if r.replayable {
		attempts = c.retry.MaxAttempts
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.retry.delay(attempt-1)); err != nil {
				return err
			}
		}
		status, respBody, err := c.do(ctx, r.method, r.path, body, token)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if retryableStatus(status) {
			lastErr = decodeError(status, respBody)
			continue
		}
		if status == http.StatusUnauthorized && r.authenticated {
			return ErrSessionExpired
		}
		if status < 200 || status > 299 {
			return decodeError(status, respBody)
		}
		if r.out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, r.out); err != nil {
			return fmt.Errorf("consoleclient: decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	var payload struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code, apiErr.Message = payload.Code, payload.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
