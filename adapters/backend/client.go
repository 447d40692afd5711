// Package backend is the HTTP client for the wallet platform API. It owns
// request plumbing, credential headers and the translation of wire failures
// into the runtime's error taxonomy.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/vaultline/vaultline/core"
	"github.com/vaultline/vaultline/ports"
)

const defaultTimeout = 30 * time.Second

// Client talks to the wallet platform REST API.
type Client struct {
	baseURL    string
	projectKey string
	ecosystem  string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets a structured logger for the client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithEcosystem scopes every request to a whitelabel ecosystem.
func WithEcosystem(ecosystem string) Option {
	return func(c *Client) { c.ecosystem = ecosystem }
}

// NewClient creates a client for the API at baseURL, authenticated with the
// project's publishable key.
func NewClient(baseURL, projectKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend: base URL is required")
	}
	if projectKey == "" {
		return nil, fmt.Errorf("backend: project key is required")
	}

	c := &Client{
		baseURL:    baseURL,
		projectKey: projectKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Auth returns the authentication resource.
func (c *Client) Auth() ports.AuthAPI { return &authAPI{c} }

// Intents returns the transaction-intent resource.
func (c *Client) Intents() ports.IntentsAPI { return &intentsAPI{c} }

// Sessions returns the session-grant resource.
func (c *Client) Sessions() ports.SessionsAPI { return &sessionsAPI{c} }

// Accounts returns the accounts resource.
func (c *Client) Accounts() ports.AccountsAPI { return &accountsAPI{c} }

// Assets returns the wallet asset resource.
func (c *Client) Assets() ports.AssetsAPI { return &assetsAPI{c} }

// do performs one API round trip. A nil auth sends only the project key;
// session auth adds a bearer token; third-party auth adds the provider token
// headers instead.
func (c *Client) do(ctx context.Context, method, path string, auth *core.Authentication, query url.Values, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("accept", "application/json")
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	req.Header.Set("x-project-key", c.projectKey)
	if c.ecosystem != "" {
		req.Header.Set("x-game", c.ecosystem)
	}

	switch {
	case auth == nil:
		req.Header.Set("authorization", "Bearer "+c.projectKey)
	case auth.Kind == core.AuthKindThirdParty:
		req.Header.Set("authorization", "Bearer "+c.projectKey)
		req.Header.Set("x-player-token", auth.AccessToken)
		req.Header.Set("x-auth-provider", auth.ThirdPartyProvider)
		req.Header.Set("x-token-type", auth.ThirdPartyTokenType)
	default:
		req.Header.Set("authorization", "Bearer "+auth.AccessToken)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.ErrRequestFailed.WithMessage(err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ErrRequestFailed.WithMessage(err.Error())
	}

	c.logger.Debug("api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 400 {
		return classify(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
