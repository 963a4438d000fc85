// Package upstream executes single operations against the third-party
// tracker API and maps failures into a small typed taxonomy.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/briangreenhill/trackhub/internal/endpoint"
)

// Result is a successful upstream response.
type Result struct {
	StatusCode int
	Body       json.RawMessage
}

// Handler executes one resolved operation. It is the seam the cache facade
// and the bulk coordinator fan out through; tests substitute fakes here.
type Handler interface {
	Do(ctx context.Context, method endpoint.Method, path string, payload any) (*Result, error)
}

// maxResponseBytes caps how much of an upstream body is accepted. A body over
// the cap is an error, never a silently truncated payload.
const maxResponseBytes = 10 << 20

// Client is the HTTP implementation of Handler.
type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client (timeouts, transport).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAPIKey sets the api-key header sent on every request.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// New creates a client for the given upstream base URL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("upstream base URL required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base URL: %w", err)
	}
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Do implements Handler. path is a resolved path, query string included.
func (c *Client) Do(ctx context.Context, method endpoint.Method, path string, payload any) (*Result, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("bad resolved path %q: %v", path, err)}
	}
	u := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("encode payload: %v", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, string(method), u.String(), body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	// Read one byte past the cap so an oversize body is detected rather than
	// returned truncated.
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("read response: %v", err)}
	}
	if len(data) > maxResponseBytes {
		return nil, &Error{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("response body exceeds %d bytes", maxResponseBytes),
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &Error{
			Kind:       classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(data, resp.StatusCode),
		}
	}
	return &Result{StatusCode: resp.StatusCode, Body: data}, nil
}

func classify(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// errorMessage pulls a message out of an upstream error body when it has the
// conventional {"error": "..."} or {"message": "..."} shape.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return http.StatusText(status)
}
