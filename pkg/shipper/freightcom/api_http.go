package freightcom

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

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration // Interval between polling for async operations
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 500 * time.Millisecond
	}

	return &HTTPAPIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		pollInterval: pollInterval,
	}
}

// CreateShipment creates a new shipment via the Freightcom API.
// POST /shipment may answer 202 Accepted; the shipment is then polled until
// it leaves the pending state or ctx expires.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, body []byte) (*ShipmentResponse, []byte, error) {
	result, raw, err := c.call(ctx, http.MethodPost, "/shipment", body)
	if err != nil {
		return nil, raw, err
	}

	for result.Status == "pending" || result.Status == "processing" {
		select {
		case <-ctx.Done():
			return nil, raw, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		result, raw, err = c.call(ctx, http.MethodGet, "/shipment/"+result.ID, nil)
		if err != nil {
			return nil, raw, err
		}
	}

	switch result.Status {
	case "error", "failed":
		return nil, raw, &APIError{
			StatusCode: http.StatusUnprocessableEntity,
			Code:       "SHIPMENT_ERROR",
			Message:    fmt.Sprintf("Shipment failed with status: %s", result.Status),
		}
	}
	return result, raw, nil
}

func (c *HTTPAPIClient) call(ctx context.Context, method, path string, body []byte) (*ShipmentResponse, []byte, error) {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return nil, raw, parseError(resp.StatusCode, raw)
	}

	var result ShipmentResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, raw, fmt.Errorf("failed to decode shipment response: %w", err)
	}
	return &result, raw, nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey) // Freightcom uses X-API-Key header
	req.Header.Set("User-Agent", "carrierhub/1.0")

	return c.httpClient.Do(req)
}

// parseError extracts error information from a response body.
func parseError(status int, body []byte) error {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = status
		return &apiErr
	}

	// Try to parse as a simple error message
	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		msg := simpleErr.Error
		if msg == "" {
			msg = simpleErr.Message
		}
		if msg != "" {
			return &APIError{StatusCode: status, Code: fmt.Sprintf("HTTP_%d", status), Message: msg}
		}
	}

	return &APIError{StatusCode: status, Code: fmt.Sprintf("HTTP_%d", status), Message: string(body)}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
