// ABOUTME: JSON HTTP client for the stakeholder chat backend
// ABOUTME: Decodes the shared success envelope and normalizes every failure into *Error

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

// TokenSource supplies the bearer credential for authenticated requests.
// An empty token means no Authorization header is sent.
type TokenSource interface {
	Token() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// Token returns f().
func (f TokenFunc) Token() string { return f() }

// envelope is the response wrapper shared by every endpoint.
type envelope struct {
	Success     *bool           `json:"success"`
	Message     string          `json:"message,omitempty"`
	Translation string          `json:"translation,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// Client performs requests against the backend API. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTokenSource sets the bearer credential source.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimit paces outgoing requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With("component", "api")
		}
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
		logger:     slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the envelope's data into out (which may be nil).
func (c *Client) Get(ctx context.Context, endpoint string, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, requireAuth, out)
}

// Post issues a POST with body encoded as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, body any, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodPost, endpoint, body, requireAuth, out)
}

// Put issues a PUT with body encoded as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, body any, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodPut, endpoint, body, requireAuth, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string, requireAuth bool, out any) error {
	return c.do(ctx, http.MethodDelete, endpoint, nil, requireAuth, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, requireAuth bool, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if requireAuth && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Message: "request not sent", Cause: err}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Message: "network error", Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "reading response", Cause: err}
	}

	c.logger.Debug("api response",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"bytes", len(raw))

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || decodeErr != nil || env.Success == nil || !*env.Success {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    failureMessage(env, resp.StatusCode),
			Payload:    json.RawMessage(raw),
		}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    "invalid response data",
			Payload:    json.RawMessage(raw),
			Cause:      err,
		}
	}
	return nil
}

// failureMessage prefers the localized message, then the generic one.
func failureMessage(env envelope, status int) string {
	if env.Translation != "" {
		return env.Translation
	}
	if env.Message != "" {
		return env.Message
	}
	return fmt.Sprintf("request failed with status %d", status)
}
