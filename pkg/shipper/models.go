package shipper

import (
	"github.com/shopspring/decimal"
)

// LabelType distinguishes outbound labels from return labels.
type LabelType string

const (
	LabelParcel LabelType = "parcel"
	LabelReturn LabelType = "return"
)

// LabelFormat represents the format of shipping labels.
type LabelFormat string

const (
	LabelPDF LabelFormat = "pdf"
	LabelPNG LabelFormat = "png"
	LabelZPL LabelFormat = "zpl"
)

// Address represents a shipping address.
type Address struct {
	Name         string
	Company      string
	Line1        string
	Line2        string
	City         string
	ProvinceCode string // e.g., "ON", "QC", "BC"
	PostalCode   string
	CountryCode  string // ISO 3166-1 alpha-2, e.g., "CA", "US"
	Phone        string
	Email        string
}

// Parcel holds the physical data of the package. Zero dimensions are unknown.
type Parcel struct {
	Quantity int
	Weight   float64 // kg
	Length   float64 // cm
	Width    float64
	Height   float64
}

// ShipmentPayload is the carrier-agnostic description of a shipment to create.
type ShipmentPayload struct {
	OrderID        int64
	OrderReference string
	InfoPackageID  int64
	ShopID         int64

	// ProductCode is the provider product (service) code of the type shipment.
	ProductCode string

	Sender    Address
	Recipient Address
	Parcel    Parcel

	CashOnDelivery decimal.Decimal
	Currency       string

	// HourFrom and HourUntil bound the pickup window, formatted "15:04".
	HourFrom  string
	HourUntil string
	Return    bool

	// Carrier-specific service flags.
	RCS   string
	VSEC  string
	DOrig string
}

// HasCashOnDelivery reports whether a COD amount must be collected.
func (p *ShipmentPayload) HasCashOnDelivery() bool {
	return p.CashOnDelivery.IsPositive()
}

// ProviderRequest is a request ready to be sent to a carrier.
type ProviderRequest struct {
	Carrier string
	// Body is the encoded wire request (XML, JSON or SOAP envelope).
	Body []byte
	// Endpoint is the provider operation the body targets.
	Endpoint string
	Config   Configuration
}

// ProviderResponse is the raw reply of a carrier.
type ProviderResponse struct {
	Carrier        string
	ShipmentNumber string
	StatusCode     int
	Body           []byte
	// Documents holds label documents fetched apart from Body, keyed by tracker code.
	Documents []Document
}

// Document is a label document as returned by the provider, before decoding.
type Document struct {
	TrackerCode string
	Type        LabelType
	Format      LabelFormat
	Encoded     string
}

// LabelArtifact is a decoded label ready to be stored.
type LabelArtifact struct {
	TrackerCode string
	Type        LabelType
	Format      LabelFormat
	Data        []byte
}
