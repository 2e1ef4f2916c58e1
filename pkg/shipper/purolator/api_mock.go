package purolator

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipment func(ctx context.Context, envelope []byte) (*ShipmentResult, error)
	OnGetDocuments   func(ctx context.Context, pins []string, documentType string) ([]Document, error)

	mu      sync.Mutex
	returns map[string]bool
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{returns: make(map[string]bool)}
}

// mockShipmentRequest picks the fields the mock needs out of a CreateShipment
// envelope. Elements match by local name.
type mockShipmentRequest struct {
	Pieces int       `xml:"Body>CreateShipmentRequest>Shipment>PackageInformation>TotalPieces"`
	Return *struct{} `xml:"Body>CreateShipmentRequest>ReturnShipmentInformation"`
}

// CreateShipment books a mock shipment with one PIN per piece.
func (m *MockAPIClient) CreateShipment(ctx context.Context, envelope []byte) (*ShipmentResult, []byte, error) {
	if err := m.wait(ctx); err != nil {
		return nil, nil, err
	}

	if m.SimulateErrors {
		return nil, nil, &APIError{StatusCode: 422, Code: "1100570", Description: "Simulated API error"}
	}

	var (
		result *ShipmentResult
		err    error
	)
	if m.OnCreateShipment != nil {
		result, err = m.OnCreateShipment(ctx, envelope)
	} else {
		result, err = m.book(envelope)
	}
	if err != nil {
		return nil, nil, err
	}

	return result, mockReply(result), nil
}

func (m *MockAPIClient) book(envelope []byte) (*ShipmentResult, error) {
	var req mockShipmentRequest
	if err := xml.Unmarshal(envelope, &req); err != nil {
		return nil, &APIError{StatusCode: 400, Code: "soap:Client", Description: err.Error()}
	}
	if req.Pieces < 1 {
		req.Pieces = 1
	}

	result := &ShipmentResult{ShipmentPIN: mockPIN()}
	result.PiecePINs = append(result.PiecePINs, result.ShipmentPIN)
	for i := 1; i < req.Pieces; i++ {
		result.PiecePINs = append(result.PiecePINs, mockPIN())
	}
	if req.Return != nil {
		result.ReturnShipmentPIN = mockPIN()
		m.mu.Lock()
		if m.returns == nil {
			m.returns = make(map[string]bool)
		}
		m.returns[result.ReturnShipmentPIN] = true
		m.mu.Unlock()
	}
	return result, nil
}

// GetDocuments returns a base64 PDF per PIN.
func (m *MockAPIClient) GetDocuments(ctx context.Context, pins []string, documentType string) ([]Document, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.OnGetDocuments != nil {
		return m.OnGetDocuments(ctx, pins, documentType)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs := make([]Document, 0, len(pins))
	for _, pin := range pins {
		typ := documentType
		if m.returns[pin] {
			typ = documentReturnLabel
		}
		docs = append(docs, Document{
			PIN:    pin,
			Type:   typ,
			Status: statusCompleted,
			Data:   base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 purolator " + pin)),
		})
	}
	return docs, nil
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

func mockPIN() string {
	return "MOCK" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}

func mockReply(r *ShipmentResult) []byte {
	var b strings.Builder
	b.WriteString(`<CreateShipmentResponse><ShipmentPIN><Value>`)
	b.WriteString(r.ShipmentPIN)
	b.WriteString(`</Value></ShipmentPIN><PiecePINs>`)
	for _, p := range r.PiecePINs {
		fmt.Fprintf(&b, "<PIN><Value>%s</Value></PIN>", p)
	}
	b.WriteString(`</PiecePINs></CreateShipmentResponse>`)
	return []byte(b.String())
}

var _ APIClient = (*MockAPIClient)(nil)
