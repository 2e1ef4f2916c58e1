package canadapost

import (
	"context"
	"encoding/xml"
)

// APIClient defines the Canada Post operations the adapter needs.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateShipment posts a shipment XML document to path.
	CreateShipment(ctx context.Context, path string, body []byte) (*ShipmentInfo, []byte, error)

	// GetArtifact downloads a label artifact from a link returned by CreateShipment.
	GetArtifact(ctx context.Context, link Link) (*Artifact, error)
}

// ShipmentInfo is the decoded shipment creation response.
type ShipmentInfo struct {
	XMLName           xml.Name `xml:"shipment-info"`
	ShipmentID        string   `xml:"shipment-id"`
	ShipmentStatus    string   `xml:"shipment-status"`
	TrackingPIN       string   `xml:"tracking-pin"`
	ReturnTrackingPIN string   `xml:"return-tracking-pin"`
	Links             []Link   `xml:"links>link"`
}

// Link is a hypermedia link in the response.
type Link struct {
	Rel       string `xml:"rel,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
	Index     int    `xml:"index,attr"`
}

// Artifact is a downloaded label document.
type Artifact struct {
	Link Link
	Data []byte
}

// APIError represents an error from the Canada Post API.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Description
}

// Link relations carrying label artifacts.
const (
	relLabel       = "label"
	relReturnLabel = "returnLabel"
)

const shipmentNamespace = "http://www.canadapost.ca/ws/shipment-v8"

// shipment is the XML request document for shipment creation.
type shipment struct {
	XMLName            xml.Name     `xml:"shipment"`
	Xmlns              string       `xml:"xmlns,attr"`
	GroupID            string       `xml:"group-id"`
	CpcPickupIndicator bool         `xml:"cpc-pickup-indicator"`
	RequestedShipping  string       `xml:"requested-shipping-point"`
	DeliverySpec       deliverySpec `xml:"delivery-spec"`
	ReturnSpec         *returnSpec  `xml:"return-spec,omitempty"`
}

type deliverySpec struct {
	ServiceCode      string                `xml:"service-code"`
	Sender           sender                `xml:"sender"`
	Destination      destination           `xml:"destination"`
	Options          *options              `xml:"options,omitempty"`
	ParcelCharacter  parcelCharacteristics `xml:"parcel-characteristics"`
	Notification     *notification         `xml:"notification,omitempty"`
	PrintPreferences printPreferences      `xml:"print-preferences"`
	References       references            `xml:"references"`
	Settlement       settlementInfo        `xml:"settlement-info"`
}

type sender struct {
	Name           string         `xml:"name"`
	Company        string         `xml:"company"`
	ContactPhone   string         `xml:"contact-phone"`
	AddressDetails addressDetails `xml:"address-details"`
}

type destination struct {
	Name           string         `xml:"name"`
	Company        string         `xml:"company,omitempty"`
	ClientVoice    string         `xml:"client-voice-number,omitempty"`
	AddressDetails addressDetails `xml:"address-details"`
}

type addressDetails struct {
	AddressLine1  string `xml:"address-line-1"`
	AddressLine2  string `xml:"address-line-2,omitempty"`
	City          string `xml:"city"`
	ProvState     string `xml:"prov-state"`
	CountryCode   string `xml:"country-code,omitempty"`
	PostalZipCode string `xml:"postal-zip-code"`
}

type options struct {
	Option []option `xml:"option"`
}

type option struct {
	Code   string `xml:"option-code"`
	Amount string `xml:"option-amount,omitempty"`
}

type parcelCharacteristics struct {
	Weight     float64     `xml:"weight"`
	Dimensions *dimensions `xml:"dimensions,omitempty"`
}

type dimensions struct {
	Length float64 `xml:"length"`
	Width  float64 `xml:"width"`
	Height float64 `xml:"height"`
}

type notification struct {
	Email      string `xml:"email"`
	OnShipment bool   `xml:"on-shipment"`
	OnDelivery bool   `xml:"on-delivery"`
}

type printPreferences struct {
	OutputFormat string `xml:"output-format"`
	Encoding     string `xml:"encoding"`
}

type references struct {
	CustomerRef1 string `xml:"customer-ref-1"`
	CustomerRef2 string `xml:"customer-ref-2,omitempty"`
}

type settlementInfo struct {
	ContractID              string `xml:"contract-id,omitempty"`
	IntendedMethodOfPayment string `xml:"intended-method-of-payment"`
}

type returnSpec struct {
	ServiceCode     string      `xml:"service-code"`
	ReturnRecipient destination `xml:"return-recipient"`
}

// messages is the XML error response structure.
type messages struct {
	XMLName xml.Name  `xml:"messages"`
	Message []message `xml:"message"`
}

type message struct {
	Code        string `xml:"code"`
	Description string `xml:"description"`
}
