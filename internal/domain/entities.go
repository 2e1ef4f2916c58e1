// Package domain holds the persistent entities, the error taxonomy and the
// repository ports shared by the services and the store backends.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/carrierhub/pkg/rules"
	"github.com/tournevent/carrierhub/pkg/shipper"
)

// State is the lifecycle tag carried by every persistent entity.
type State string

const (
	StateActive  State = "active"
	StateDeleted State = "deleted"
)

// ConfigEntry is one carrier or type shipment configuration value.
type ConfigEntry struct {
	Key      string `json:"key" validate:"required,max=64"`
	Value    string `json:"value" validate:"max=1024"`
	Required bool   `json:"required"`
}

// ConfigEntries is an ordered list of configuration entries.
type ConfigEntries []ConfigEntry

// Map returns the entries as a Configuration. Later duplicates win.
func (e ConfigEntries) Map() shipper.Configuration {
	cfg := make(shipper.Configuration, len(e))
	for _, entry := range e {
		cfg[entry.Key] = entry.Value
	}
	return cfg
}

// Lookup returns the entry with key.
func (e ConfigEntries) Lookup(key string) (ConfigEntry, bool) {
	for _, entry := range e {
		if entry.Key == key {
			return entry, true
		}
	}
	return ConfigEntry{}, false
}

// RequiredKeys returns the keys flagged as required, in order.
func (e ConfigEntries) RequiredKeys() []string {
	var keys []string
	for _, entry := range e {
		if entry.Required {
			keys = append(keys, entry.Key)
		}
	}
	return keys
}

// Carrier is a shipping company. ShortName is the adapter code.
type Carrier struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name" validate:"required,max=128"`
	ShortName string        `json:"short_name" validate:"required,max=32"`
	Icon      string        `json:"icon,omitempty" validate:"omitempty,max=255"`
	ShopIDs   []int64       `json:"shop_ids,omitempty" validate:"dive,gt=0"`
	Active    bool          `json:"active"`
	Config    ConfigEntries `json:"config,omitempty" validate:"dive"`
	State     State         `json:"state"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// EnabledFor reports whether the carrier serves shopID. An empty shop list
// means every shop; shopID 0 means any shop.
func (c *Carrier) EnabledFor(shopID int64) bool {
	if shopID == 0 || len(c.ShopIDs) == 0 {
		return true
	}
	for _, id := range c.ShopIDs {
		if id == shopID {
			return true
		}
	}
	return false
}

// Usable reports whether the carrier can take new shipments for shopID.
func (c *Carrier) Usable(shopID int64) bool {
	return c.State == StateActive && c.Active && c.EnabledFor(shopID)
}

// TypeShipment is a product offered by a carrier.
type TypeShipment struct {
	ID                 int64         `json:"id"`
	CarrierID          int64         `json:"carrier_id" validate:"required,gt=0"`
	Name               string        `json:"name" validate:"required,max=128"`
	BusinessCode       string        `json:"business_code" validate:"required,max=64"`
	ReferenceCarrierID int64         `json:"reference_carrier_id" validate:"required,gt=0"`
	Active             bool          `json:"active"`
	Config             ConfigEntries `json:"config,omitempty" validate:"dive"`
	State              State         `json:"state"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Usable reports whether the type shipment can be booked.
func (t *TypeShipment) Usable() bool {
	return t.State == StateActive && t.Active
}

// InfoPackage describes the package of an order waiting for a shipment.
type InfoPackage struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"order_id" validate:"required,gt=0"`
	ShopID             int64           `json:"shop_id" validate:"gte=0"`
	ReferenceCarrierID int64           `json:"reference_carrier_id" validate:"required,gt=0"`
	TypeShipmentID     int64           `json:"type_shipment_id,omitempty" validate:"gte=0"`
	Quantity           int             `json:"quantity" validate:"gte=0"`
	Weight             float64         `json:"weight" validate:"gte=0"`
	Length             float64         `json:"length,omitempty" validate:"gte=0"`
	Width              float64         `json:"width,omitempty" validate:"gte=0"`
	Height             float64         `json:"height,omitempty" validate:"gte=0"`
	CashOnDelivery     decimal.Decimal `json:"cash_on_delivery"`
	HourFrom           string          `json:"hour_from,omitempty" validate:"omitempty,datetime=15:04"`
	HourUntil          string          `json:"hour_until,omitempty" validate:"omitempty,datetime=15:04"`
	Return             bool            `json:"return"`
	RCS                string          `json:"rcs,omitempty" validate:"max=32"`
	VSEC               string          `json:"vsec,omitempty" validate:"max=32"`
	DOrig              string          `json:"dorig,omitempty" validate:"max=32"`
	State              State           `json:"state"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Shipment is a booked package.
type Shipment struct {
	ID             int64     `json:"id"`
	OrderID        int64     `json:"order_id"`
	OrderReference string    `json:"order_reference"`
	ShipmentNumber string    `json:"shipment_number"`
	InfoPackageID  int64     `json:"info_package_id"`
	CompanyID      int64     `json:"company_id"`
	TypeShipmentID int64     `json:"type_shipment_id"`
	ShopID         int64     `json:"shop_id"`
	Product        string    `json:"product"`
	Request        []byte    `json:"request,omitempty"`
	Response       []byte    `json:"response,omitempty"`
	State          State     `json:"state"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Label is a printable document of a shipment. Content is base64 text.
type Label struct {
	ID          int64               `json:"id"`
	ShipmentID  int64               `json:"shipment_id"`
	TrackerCode string              `json:"tracker_code"`
	Type        shipper.LabelType   `json:"label_type"`
	Format      shipper.LabelFormat `json:"format"`
	Printed     bool                `json:"printed"`
	Content     string              `json:"content"`
	State       State               `json:"state"`
	CreatedAt   time.Time           `json:"created_at"`
}

// ValidationRule is a stored carrier selection rule.
type ValidationRule struct {
	rules.Rule
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LogEntry is an append-only audit record of a carrier call.
type LogEntry struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	OrderID       int64     `json:"order_id"`
	InfoPackageID int64     `json:"info_package_id"`
	Carrier       string    `json:"carrier"`
	Request       []byte    `json:"request,omitempty"`
	Response      []byte    `json:"response,omitempty"`
	Error         string    `json:"error,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	State         State     `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// Log entry names.
const (
	LogShipmentCreated = "shipment.generate"
	LogShipmentFailed  = "shipment.generate.failed"
	LogShipmentDeleted = "shipment.delete"
)

// Order is the host platform view of an order.
type Order struct {
	ID          int64
	Reference   string
	ShopID      int64
	ShopGroupID int64
	ZoneID      int64
	CountryID   int64
	Weight      float64
	ProductIDs  []int64
	CategoryIDs []int64
	Currency    string
	Recipient   shipper.Address
}

// Context returns the rule matching view of the order.
func (o *Order) Context() rules.OrderContext {
	return rules.OrderContext{
		ShopID:      o.ShopID,
		ShopGroupID: o.ShopGroupID,
		ZoneID:      o.ZoneID,
		CountryID:   o.CountryID,
		Weight:      o.Weight,
		ProductIDs:  o.ProductIDs,
		CategoryIDs: o.CategoryIDs,
	}
}
