package canadapost

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, path string, body []byte) (*ShipmentInfo, []byte, error)
	OnGetArtifact    func(ctx context.Context, link Link) (*Artifact, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.SimulateLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CreateShipment creates a mock shipment with one label link, plus a return
// label link when the request carries a return-spec.
func (m *MockAPIClient) CreateShipment(ctx context.Context, path string, body []byte) (*ShipmentInfo, []byte, error) {
	if err := m.wait(ctx); err != nil {
		return nil, nil, err
	}

	if m.SimulateErrors {
		return nil, nil, &APIError{StatusCode: 400, Code: "MOCK_ERROR", Description: "Simulated API error"}
	}

	if m.OnCreateShipment != nil {
		return m.OnCreateShipment(ctx, path, body)
	}

	var req shipment
	if err := xml.Unmarshal(body, &req); err != nil {
		return nil, nil, &APIError{StatusCode: 400, Code: "Server", Description: err.Error()}
	}

	shipmentID := "cp-ship-" + uuid.New().String()[:8]
	info := &ShipmentInfo{
		ShipmentID:     shipmentID,
		ShipmentStatus: "created",
		TrackingPIN:    fmt.Sprintf("7023%012d", len(body)),
		Links: []Link{
			{Rel: "self", Href: "https://ct.soa-gw.canadapost.ca" + path + "/" + shipmentID},
			{Rel: relLabel, Href: fmt.Sprintf("https://ct.soa-gw.canadapost.ca/rs/artifact/%s/0", shipmentID), MediaType: "application/pdf"},
		},
	}
	if req.ReturnSpec != nil {
		info.ReturnTrackingPIN = info.TrackingPIN + "R"
		info.Links = append(info.Links, Link{
			Rel:       relReturnLabel,
			Href:      fmt.Sprintf("https://ct.soa-gw.canadapost.ca/rs/artifact/%s/1", shipmentID),
			MediaType: "application/pdf",
			Index:     1,
		})
	}

	raw, _ := xml.Marshal(info)
	return info, raw, nil
}

// GetArtifact returns a placeholder PDF.
func (m *MockAPIClient) GetArtifact(ctx context.Context, link Link) (*Artifact, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 503, Code: "MOCK_ERROR", Description: "Simulated API error"}
	}

	if m.OnGetArtifact != nil {
		return m.OnGetArtifact(ctx, link)
	}

	return &Artifact{
		Link: link,
		Data: []byte("%PDF-1.4 mock label data " + link.Href),
	}, nil
}

var _ APIClient = (*MockAPIClient)(nil)
