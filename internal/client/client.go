// Package client calls the proxy endpoints on behalf of a signed-in user.
// The user's session token is resolved from a TokenSource before every call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/projectdesk/api-proxy/internal/models"
	"golang.org/x/oauth2"
)

const (
	ChatPath   = "/api/chat"
	PortalPath = "/api/billing/portal"
)

// APIError is a non-2xx answer from the proxy
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Client talks to a running proxy
type Client struct {
	baseURL string
	tokens  oauth2.TokenSource
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for the proxy at baseURL. tokens may be nil for
// anonymous use.
func New(baseURL string, tokens oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete asks the chat proxy for a reply
func (c *Client) Complete(ctx context.Context, req models.ChatRequest) (string, error) {
	var result models.ChatResult
	if err := c.post(ctx, ChatPath, req, &result); err != nil {
		return "", err
	}
	return result.Content, nil
}

// CreatePortalSession returns the redirect URL of a new billing portal session.
// An empty returnURL lets the server derive one from the request origin.
func (c *Client) CreatePortalSession(ctx context.Context, returnURL string) (string, error) {
	var result models.PortalResult
	if err := c.post(ctx, PortalPath, models.PortalRequest{ReturnURL: returnURL}, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("failed to resolve session token: %w", err)
		}
		if tok != nil && tok.AccessToken != "" {
			tok.SetAuthHeader(req)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, raw)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func apiError(status int, raw []byte) *APIError {
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		return &APIError{Status: status, Message: fmt.Sprintf("Request failed with status %d", status)}
	}
	return &APIError{Status: status, Message: body.Error}
}
