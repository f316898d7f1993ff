package aldis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"frameworks/klaxon/pkg/api/aldis"
	"frameworks/klaxon/pkg/clients"
	"frameworks/klaxon/pkg/ctxkeys"
	"frameworks/klaxon/pkg/logging"
	"frameworks/klaxon/pkg/models"
)

// APIError preserves the upstream HTTP status so handlers can surface it
// unchanged instead of collapsing everything into a 500.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("aldis returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("aldis returned status: %d", e.StatusCode)
}

// IsNotFound reports whether err is an aldis 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client represents an Aldis alerting engine API client
type Client struct {
	baseURL      string
	httpClient   *http.Client
	serviceToken string
	logger       logging.Logger
	retryConfig  clients.RetryConfig
}

// Config represents the configuration for the Aldis client
type Config struct {
	BaseURL              string
	ServiceToken         string
	Timeout              time.Duration
	Logger               logging.Logger
	RetryConfig          *clients.RetryConfig
	CircuitBreakerConfig *clients.CircuitBreakerConfig
}

// NewClient creates a new Aldis API client
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	retryConfig := clients.DefaultRetryConfig()
	if config.RetryConfig != nil {
		retryConfig = *config.RetryConfig
	}

	// Add circuit breaker if configured
	if config.CircuitBreakerConfig != nil {
		retryConfig.CircuitBreaker = clients.NewCircuitBreaker(*config.CircuitBreakerConfig)
	}

	httpClient := &http.Client{
		Timeout:   config.Timeout,
		Transport: clients.DefaultTransport(),
	}

	return &Client{
		baseURL:      config.BaseURL,
		httpClient:   httpClient,
		serviceToken: config.ServiceToken,
		logger:       config.Logger,
		retryConfig:  retryConfig,
	}
}

// do issues one request against aldis and decodes the response into out
// when out is non-nil. Non-2xx responses come back as *APIError.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if jwtToken := ctxkeys.GetJWTToken(ctx); jwtToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+jwtToken)
	} else if c.serviceToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.serviceToken)
	}

	started := time.Now()
	resp, err := clients.DoWithRetry(ctx, c.httpClient, httpReq, c.retryConfig)
	if err != nil {
		clients.RecordUpstreamRequest("aldis", operation, 0, started)
		return fmt.Errorf("failed to call aldis: %w", err)
	}
	defer resp.Body.Close()
	clients.RecordUpstreamRequest("aldis", operation, resp.StatusCode, started)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.apiError(method, path, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError drains the error body and turns it into an *APIError. 4xx is
// expected flow control (missing receivers, write conflicts) and stays
// quiet; 5xx gets logged.
func (c *Client) apiError(method, path string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope aldis.ErrorResponse
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		apiErr.Message = envelope.Error
	}

	if resp.StatusCode >= http.StatusInternalServerError && c.logger != nil {
		c.logger.WithFields(logging.Fields{
			"method":      method,
			"path":        path,
			"status_code": resp.StatusCode,
			"response":    string(body),
		}).Error("Aldis request failed")
	}

	return apiErr
}

// GetConfig fetches the whole legacy configuration document for one backend.
func (c *Client) GetConfig(ctx context.Context, backendID string) (*aldis.ConfigDocument, error) {
	var out aldis.GetConfigResponse
	path := "/api/v1/backends/" + url.PathEscape(backendID) + "/config"
	if err := c.do(ctx, "get_config", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out.Config, nil
}

// PutConfig replaces the whole legacy configuration document for one backend.
// Callers are expected to send back a freshly fetched document with only
// their own edits applied.
func (c *Client) PutConfig(ctx context.Context, backendID string, doc *aldis.ConfigDocument) error {
	path := "/api/v1/backends/" + url.PathEscape(backendID) + "/config"
	return c.do(ctx, "put_config", http.MethodPut, path, &aldis.PutConfigRequest{Config: *doc}, nil)
}

// GetReceiverStatuses fetches the delivery state for every receiver of one
// backend, keyed by receiver name.
func (c *Client) GetReceiverStatuses(ctx context.Context, backendID string) ([]models.ReceiverStatus, error) {
	var out aldis.ReceiverStatusesResponse
	path := "/api/v1/backends/" + url.PathEscape(backendID) + "/receivers/status"
	if err := c.do(ctx, "get_receiver_statuses", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Receivers, nil
}

// ListNotifiers fetches the static notifier type catalog.
func (c *Client) ListNotifiers(ctx context.Context) ([]models.NotifierMetadata, error) {
	var out aldis.NotifiersResponse
	if err := c.do(ctx, "list_notifiers", http.MethodGet, "/api/v1/notifiers", nil, &out); err != nil {
		return nil, err
	}
	return out.Notifiers, nil
}

// ListReceivers lists the structured receiver resources in a namespace.
func (c *Client) ListReceivers(ctx context.Context, namespace string) ([]aldis.ReceiverResource, error) {
	var out aldis.ListReceiversResponse
	path := "/api/v2/namespaces/" + url.PathEscape(namespace) + "/receivers"
	if err := c.do(ctx, "list_receivers", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetReceiver fetches a single structured receiver resource by its stable
// metadata name.
func (c *Client) GetReceiver(ctx context.Context, namespace, name string) (*aldis.ReceiverResource, error) {
	var out aldis.ReceiverResource
	path := "/api/v2/namespaces/" + url.PathEscape(namespace) + "/receivers/" + url.PathEscape(name)
	if err := c.do(ctx, "get_receiver", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReceiver creates a structured receiver resource and returns the
// stored resource, including the server-assigned metadata name.
func (c *Client) CreateReceiver(ctx context.Context, namespace string, resource *aldis.ReceiverResource) (*aldis.ReceiverResource, error) {
	var out aldis.ReceiverResource
	path := "/api/v2/namespaces/" + url.PathEscape(namespace) + "/receivers"
	if err := c.do(ctx, "create_receiver", http.MethodPost, path, resource, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateReceiver replaces a structured receiver resource in place.
func (c *Client) UpdateReceiver(ctx context.Context, namespace string, resource *aldis.ReceiverResource) (*aldis.ReceiverResource, error) {
	var out aldis.ReceiverResource
	path := "/api/v2/namespaces/" + url.PathEscape(namespace) + "/receivers/" + url.PathEscape(resource.Metadata.Name)
	if err := c.do(ctx, "update_receiver", http.MethodPut, path, resource, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteReceiver deletes a structured receiver resource by its metadata name.
func (c *Client) DeleteReceiver(ctx context.Context, namespace, name string) error {
	path := "/api/v2/namespaces/" + url.PathEscape(namespace) + "/receivers/" + url.PathEscape(name)
	return c.do(ctx, "delete_receiver", http.MethodDelete, path, nil, nil)
}
