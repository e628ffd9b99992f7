// Package loom is the HTTP client for the Loom platform API. The scheduling
// service uses it to inspect deployed workflow graphs and resolve project
// ownership; graph storage itself lives behind that API.
package loom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ClientInterface is the surface the scheduling service consumes.
type ClientInterface interface {
	ScanTriggerNodes(ctx context.Context, graphID string) (*ScanTriggerNodesResponse, error)
	GetProjectOrganization(ctx context.Context, projectID string) (*GetProjectOrganizationResponse, error)
}

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://localhost:8080",
		Timeout: 30 * time.Second,
	}
}

// ClientOption mutates the client configuration.
type ClientOption func(*ClientConfig)

// WithBaseURL sets the API base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *ClientConfig) { c.BaseURL = baseURL }
}

// WithAPIKey sets the API key sent on every request.
func WithAPIKey(apiKey string) ClientOption {
	return func(c *ClientConfig) { c.APIKey = apiKey }
}

// WithTimeout sets the request timeout for the default HTTP client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) { c.Timeout = timeout }
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *ClientConfig) { c.HTTPClient = httpClient }
}

// Client provides a high-level interface for the Loom platform API.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new Loom client with the given options.
func NewClient(options ...ClientOption) *Client {
	config := DefaultConfig()
	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// TriggerNode is one cron-trigger component instance in a deployed graph.
type TriggerNode struct {
	NodeInstanceID string        `json:"node_instance_id"`
	Params         TriggerParams `json:"params"`
}

// TriggerParams are the scheduling parameters configured on a trigger node.
type TriggerParams struct {
	CronExpression string `json:"cron_expression"`
	Timezone       string `json:"timezone"`
	Enabled        *bool  `json:"enabled"`
}

// ScanTriggerNodesResponse lists the trigger nodes of a graph.
type ScanTriggerNodesResponse struct {
	GraphID      string        `json:"graph_id"`
	TriggerNodes []TriggerNode `json:"trigger_nodes"`
}

// ScanTriggerNodes enumerates the trigger nodes of a deployed graph.
func (c *Client) ScanTriggerNodes(ctx context.Context, graphID string) (*ScanTriggerNodesResponse, error) {
	path := fmt.Sprintf("/v1/graphs/%s/trigger-nodes", graphID)

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to scan trigger nodes: %w", err)
	}

	var result ScanTriggerNodesResponse
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to process trigger nodes response: %w", err)
	}
	return &result, nil
}

// GetProjectOrganizationResponse carries a project's owning organization.
type GetProjectOrganizationResponse struct {
	ProjectID      string `json:"project_id"`
	OrganizationID string `json:"organization_id"`
}

// GetProjectOrganization resolves the organization that owns a project.
func (c *Client) GetProjectOrganization(ctx context.Context, projectID string) (*GetProjectOrganizationResponse, error) {
	path := fmt.Sprintf("/v1/projects/%s/organization", projectID)

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get project organization: %w", err)
	}

	var result GetProjectOrganizationResponse
	if err := c.handleResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to process project organization response: %w", err)
	}
	return &result, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("X-API-Key", c.config.APIKey)
	}

	return c.httpClient.Do(req)
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
		var parsed struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Message != "" {
			apiErr.Message = parsed.Message
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
