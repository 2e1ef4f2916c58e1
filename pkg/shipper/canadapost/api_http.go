package canadapost

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPAPIClient is the production implementation of APIClient using HTTP/XML.
type HTTPAPIClient struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string // Password for Basic Auth
	Timeout   time.Duration
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &HTTPAPIClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateShipment posts the shipment document and decodes the shipment-info reply.
// The raw reply is returned alongside for auditing.
func (c *HTTPAPIClient) CreateShipment(ctx context.Context, path string, body []byte) (*ShipmentInfo, []byte, error) {
	const mediaType = "application/vnd.cpc.shipment-v8+xml"

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+path, mediaType, body)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, raw, parseError(resp.StatusCode, raw)
	}

	var info ShipmentInfo
	if err := xml.Unmarshal(raw, &info); err != nil {
		return nil, raw, fmt.Errorf("failed to decode response: %w", err)
	}
	return &info, raw, nil
}

// GetArtifact downloads a label. Links are absolute URLs.
func (c *HTTPAPIClient) GetArtifact(ctx context.Context, link Link) (*Artifact, error) {
	accept := link.MediaType
	if accept == "" {
		accept = "application/pdf"
	}

	resp, err := c.do(ctx, http.MethodGet, link.Href, accept, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read label data: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseError(resp.StatusCode, data)
	}

	return &Artifact{Link: link, Data: data}, nil
}

func (c *HTTPAPIClient) do(ctx context.Context, method, url, mediaType string, body []byte) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Canada Post uses Basic Auth with API key:secret
	credentials := c.apiKey
	if c.apiSecret != "" {
		credentials = c.apiKey + ":" + c.apiSecret
	}
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(credentials)))
	req.Header.Set("Accept-Language", "en-CA")
	req.Header.Set("Accept", mediaType)
	if body != nil {
		req.Header.Set("Content-Type", mediaType)
	}

	return c.httpClient.Do(req)
}

func parseError(status int, body []byte) error {
	var msgs messages
	if err := xml.Unmarshal(body, &msgs); err == nil && len(msgs.Message) > 0 {
		return &APIError{
			StatusCode:  status,
			Code:        msgs.Message[0].Code,
			Description: msgs.Message[0].Description,
		}
	}

	return &APIError{
		StatusCode:  status,
		Code:        fmt.Sprintf("HTTP_%d", status),
		Description: string(body),
	}
}

// normalizePostalCode removes spaces from postal codes
func normalizePostalCode(pc string) string {
	return strings.ReplaceAll(strings.ToUpper(pc), " ", "")
}

var _ APIClient = (*HTTPAPIClient)(nil)
