package freightcom

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
// Repeated unique ids return the previously created shipment, like the real API.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, req *ShipmentRequest) (*ShipmentResponse, error)

	mu      sync.Mutex
	created map[string]*ShipmentResponse
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{created: make(map[string]*ShipmentResponse)}
}

// CreateShipment books a mock shipment with inline base64 labels.
func (m *MockAPIClient) CreateShipment(ctx context.Context, body []byte) (*ShipmentResponse, []byte, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-time.After(m.SimulateLatency):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}

	if m.SimulateErrors {
		return nil, nil, &APIError{StatusCode: 422, Code: "MOCK_ERROR", Message: "Simulated API error"}
	}

	var req ShipmentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, &APIError{StatusCode: 400, Code: "INVALID_JSON", Message: err.Error()}
	}

	var (
		resp *ShipmentResponse
		err  error
	)
	if m.OnCreateShipment != nil {
		resp, err = m.OnCreateShipment(ctx, &req)
	} else {
		resp = m.book(&req)
	}
	if err != nil {
		return nil, nil, err
	}

	raw, _ := json.Marshal(resp)
	return resp, raw, nil
}

func (m *MockAPIClient) book(req *ShipmentRequest) *ShipmentResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.created == nil {
		m.created = make(map[string]*ShipmentResponse)
	}
	if prev, ok := m.created[req.UniqueID]; ok {
		again := *prev
		again.PreviouslyCreated = true
		return &again
	}

	format := req.LabelFormat
	if format == "" {
		format = "pdf"
	}
	tracking := fmt.Sprintf("FC%s", uuid.New().String()[:8])
	resp := &ShipmentResponse{
		ID:              "fc-ship-" + uuid.New().String()[:8],
		UniqueID:        req.UniqueID,
		Status:          "booked",
		TrackingNumbers: []string{tracking},
		Labels: []Label{{
			TrackingNumber: tracking,
			Type:           "shipping",
			Format:         format,
			Data:           base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 freightcom " + tracking)),
		}},
	}
	if req.ReturnLabel {
		resp.Labels = append(resp.Labels, Label{
			TrackingNumber: tracking + "-RET",
			Type:           "return",
			Format:         format,
			Data:           base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 freightcom return " + tracking)),
		})
	}
	m.created[req.UniqueID] = resp
	return resp
}

var _ APIClient = (*MockAPIClient)(nil)
