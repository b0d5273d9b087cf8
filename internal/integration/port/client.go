// Package port provides a client for the Port management API.
package port

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/port-experimental/integration-healthcheck/internal/integration"
	"github.com/port-experimental/integration-healthcheck/internal/resilience"
)

const (
	// DefaultBaseURL is the Port API base URL.
	DefaultBaseURL = "https://api.port.io"

	// auditLogLimit bounds a single audit-log fetch. The API is paged,
	// but one page at this size covers a resync window.
	auditLogLimit = 1000
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is a non-2xx response from the Port API.
type StatusError struct {
	// Code is the HTTP status code.
	Code int

	// Body is the raw response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("port api returned status %d: %s", e.Code, e.Body)
}

// ClientConfig holds configuration for the Port client.
type ClientConfig struct {
	// Token supplies the API token attached to every request (required).
	Token TokenProvider

	// BaseURL is the API base URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Port API client.
type Client struct {
	baseURL    string
	token      TokenProvider
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Port client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("port"))
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// ListIntegrations fetches every integration registered in the organization.
func (c *Client) ListIntegrations(ctx context.Context) ([]*integration.Integration, error) {
	var result struct {
		Integrations []*integration.Integration `json:"integrations"`
	}
	if err := c.getJSON(ctx, "/v1/integration", nil, &result); err != nil {
		return nil, err
	}
	c.logger.Info().Int("count", len(result.Integrations)).Msg("fetched integrations")
	return result.Integrations, nil
}

// IntegrationLogs fetches up to limit activity log entries for an installation.
func (c *Client) IntegrationLogs(ctx context.Context, installationID string, limit int) ([]integration.LogEntry, error) {
	query := url.Values{
		"limit": {strconv.Itoa(limit)},
	}
	var result struct {
		Data []integration.LogEntry `json:"data"`
	}
	path := fmt.Sprintf("/v1/integration/%s/logs", url.PathEscape(installationID))
	if err := c.getJSON(ctx, path, query, &result); err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("installation_id", installationID).
		Int("count", len(result.Data)).
		Msg("fetched integration logs")
	return result.Data, nil
}

// AuditLogs fetches audit entries for an installation from the given time.
func (c *Client) AuditLogs(ctx context.Context, installationID string, from time.Time) ([]integration.AuditEntry, error) {
	query := url.Values{
		"from":           {from.Format(time.RFC3339)},
		"InstallationId": {installationID},
		"limit":          {strconv.Itoa(auditLogLimit)},
		"includes":       {"status", "message"},
	}
	var result struct {
		Audits []integration.AuditEntry `json:"audits"`
	}
	if err := c.getJSON(ctx, "/v1/audit-log", query, &result); err != nil {
		return nil, err
	}
	c.logger.Info().
		Str("installation_id", installationID).
		Int("count", len(result.Audits)).
		Msg("fetched audit logs")
	return result.Audits, nil
}

// OrganizationHealth reports whether the Port organization is healthy.
func (c *Client) OrganizationHealth(ctx context.Context) (bool, error) {
	var result struct {
		OK bool `json:"ok"`
	}
	if err := c.getJSON(ctx, "/v1/organization", nil, &result); err != nil {
		return false, err
	}
	return result.OK, nil
}

// getJSON issues an authenticated GET and decodes the JSON response.
// A fresh token is obtained per request; the provider owns any caching.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	c.logger.Info().Str("method", http.MethodGet).Str("url", u).Msg("sending request to port api")

	token, err := c.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtaining token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(body)}
		c.logger.Error().Int("status", resp.StatusCode).Str("url", u).Msg("port api request failed")
		return statusErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
