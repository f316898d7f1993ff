package mayday

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"frameworks/klaxon/pkg/api/mayday"
	"frameworks/klaxon/pkg/clients"
	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/logging"
	"frameworks/klaxon/pkg/models"

	"github.com/failsafe-go/failsafe-go"
)

// APIError carries the incident service's HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mayday returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("mayday returned status: %d", e.StatusCode)
}

// Client talks to the Mayday incident service.
type Client struct {
	baseURL      string
	serviceToken string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	shouldRetry  func(resp *http.Response, err error) bool
	logger       logging.Logger
}

type Option func(*Client)

func NewClient(baseURL, serviceToken string, opts ...Option) *Client {
	defaultConfig := clients.DefaultHTTPExecutorConfig()
	c := &Client{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		client:       &http.Client{Timeout: 15 * time.Second, Transport: clients.DefaultTransport()},
		httpExecutor: clients.NewHTTPExecutor(defaultConfig),
		shouldRetry:  defaultConfig.ShouldRetry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

func WithHTTPExecutorConfig(cfg clients.HTTPExecutorConfig) Option {
	return func(c *Client) {
		c.httpExecutor = clients.NewHTTPExecutor(cfg)
		c.shouldRetry = cfg.ShouldRetry
	}
}

func WithHTTPExecutor(executor failsafe.Executor[*http.Response], shouldRetry func(resp *http.Response, err error) bool) Option {
	return func(c *Client) {
		if executor != nil {
			c.httpExecutor = executor
			c.shouldRetry = shouldRetry
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func (c *Client) doRequest(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	if c.httpExecutor == nil {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		return c.client.Do(req)
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		resp, err := c.client.Do(req)
		if c.shouldRetry != nil && c.shouldRetry(resp, err) {
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
		}
		return resp, err
	})
}

// buildRequest assembles a JSON request against the Mayday API. A console
// JWT on the context is forwarded so Mayday scopes the call to the signed-in
// tenant; service-to-service calls fall back to the shared token.
func (c *Client) buildRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if jwtToken := ctxkeys.GetJWTToken(ctx); jwtToken != "" {
		req.Header.Set("Authorization", "Bearer "+jwtToken)
	} else if c.serviceToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	started := time.Now()
	resp, err := c.doRequest(ctx, func(ctx context.Context) (*http.Request, error) {
		return c.buildRequest(ctx, method, path, body)
	})
	if err != nil {
		clients.RecordUpstreamRequest("mayday", operation, 0, started)
		return fmt.Errorf("failed to call mayday: %w", err)
	}
	defer resp.Body.Close()
	clients.RecordUpstreamRequest("mayday", operation, resp.StatusCode, started)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope mayday.ErrorResponse
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error != "" {
			apiErr.Message = envelope.Error
		}
		if resp.StatusCode >= http.StatusInternalServerError && c.logger != nil {
			c.logger.WithFields(logging.Fields{
				"method":      method,
				"path":        path,
				"status_code": resp.StatusCode,
				"response":    string(respBody),
			}).Error("Mayday request failed")
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ListIntegrations returns every incident-service integration visible to the
// caller.
func (c *Client) ListIntegrations(ctx context.Context) ([]models.MaydayIntegration, error) {
	var out mayday.ListIntegrationsResponse
	if err := c.do(ctx, "list_integrations", http.MethodGet, "/api/v1/integrations", nil, &out); err != nil {
		return nil, err
	}
	return out.Integrations, nil
}

// CreateIntegration provisions a webhook integration and returns it with its
// delivery URL populated.
func (c *Client) CreateIntegration(ctx context.Context, name string) (*models.MaydayIntegration, error) {
	var out mayday.CreateIntegrationResponse
	req := mayday.CreateIntegrationRequest{Name: name, Type: mayday.IntegrationType}
	if err := c.do(ctx, "create_integration", http.MethodPost, "/api/v1/integrations", &req, &out); err != nil {
		return nil, err
	}
	return &out.Integration, nil
}
