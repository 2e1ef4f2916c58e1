package purolator

import (
	"context"
)

// APIClient defines the Purolator operations the adapter needs.
// This abstraction allows for mock implementations during testing
// and real SOAP implementations in production.
type APIClient interface {
	// CreateShipment posts a CreateShipment SOAP envelope via ShippingService.
	// The raw reply is returned alongside for auditing.
	CreateShipment(ctx context.Context, envelope []byte) (*ShipmentResult, []byte, error)

	// GetDocuments fetches the label documents of the given PINs via
	// ShippingDocumentsService.
	GetDocuments(ctx context.Context, pins []string, documentType string) ([]Document, error)
}

// ShipmentResult is the decoded CreateShipment reply.
type ShipmentResult struct {
	ShipmentPIN       string
	PiecePINs         []string
	ReturnShipmentPIN string
}

// Document is one label document returned for a PIN.
type Document struct {
	PIN    string
	Type   string // "DomesticBillOfLading", "ReturnLabel", ...
	Status string // "Completed" once printable
	Data   string // Base64 encoded
}

// APIError represents an error from the Purolator API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Description
}

const (
	// faultServer marks a SOAP fault raised by the service itself.
	faultServer = "soap:Server"

	statusCompleted      = "Completed"
	documentBillOfLading = "DomesticBillOfLading"
	documentReturnLabel  = "ReturnLabel"
)
