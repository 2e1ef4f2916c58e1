package freightcom

import (
	"context"
)

// APIClient defines the Freightcom operations the adapter needs.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateShipment posts a JSON shipment request and waits until the shipment
	// is booked. The raw final reply is returned alongside for auditing.
	CreateShipment(ctx context.Context, body []byte) (*ShipmentResponse, []byte, error)
}

// ShipmentRequest represents a Freightcom shipment creation request.
// POST /shipment endpoint
type ShipmentRequest struct {
	UniqueID        string          `json:"unique_id"`         // Max 128 chars, prevents duplicates
	PaymentMethodID string          `json:"payment_method_id"` // From /finance/payment-methods
	ServiceID       string          `json:"service_id"`
	Details         Details         `json:"details"`
	Reference       string          `json:"reference,omitempty"`
	LabelFormat     string          `json:"label_format,omitempty"`
	COD             *CashOnDelivery `json:"cash_on_delivery,omitempty"`
	PickupDetails   *PickupDetails  `json:"pickup_details,omitempty"`
	ReturnLabel     bool            `json:"return_label,omitempty"`
}

// Details contains origin, destination and packaging.
type Details struct {
	Origin      Location      `json:"origin"`
	Destination Location      `json:"destination"`
	Packaging   PackagingInfo `json:"packaging"`
}

// Location represents origin or destination.
type Location struct {
	Name       string `json:"name,omitempty"`
	Company    string `json:"company,omitempty"`
	Address1   string `json:"address_1"`
	Address2   string `json:"address_2,omitempty"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"` // ISO 3166-1 alpha-2 code
	Phone      string `json:"phone,omitempty"`
	Email      string `json:"email,omitempty"`
}

// PackagingInfo contains package details.
type PackagingInfo struct {
	Type     string    `json:"type"` // "package", "envelope", "pallet"
	Packages []Package `json:"packages"`
}

// Package represents a single package.
type Package struct {
	Length   float64 `json:"length"` // cm
	Width    float64 `json:"width"`  // cm
	Height   float64 `json:"height"` // cm
	Weight   float64 `json:"weight"` // kg
	Quantity int     `json:"quantity,omitempty"`
}

// CashOnDelivery is the amount the carrier collects.
type CashOnDelivery struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// PickupDetails for scheduling pickup.
type PickupDetails struct {
	ReadyTime   string `json:"ready_time"`   // HH:MM
	ClosingTime string `json:"closing_time"` // HH:MM
}

// ShipmentResponse represents the Freightcom shipment creation response.
type ShipmentResponse struct {
	ID                string   `json:"id"`
	UniqueID          string   `json:"unique_id"`
	PreviouslyCreated bool     `json:"previously_created"`
	Status            string   `json:"status"`
	TrackingNumbers   []string `json:"tracking_numbers"`
	Labels            []Label  `json:"labels,omitempty"`
}

// Label is a label document embedded in the shipment response.
type Label struct {
	TrackingNumber string `json:"tracking_number"`
	Type           string `json:"type"`   // "shipping", "return"
	Format         string `json:"format"` // "pdf", "zpl", "png"
	Data           string `json:"data"`   // base64
}

// APIError represents an error from the Freightcom API.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors,omitempty"` // Field-level errors
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
