package domain

import (
	"context"
)

// Repositories only return entities in StateActive unless noted. Get methods
// return the matching NotFound error when the id is absent or deleted.

// CarrierRepository stores carriers.
type CarrierRepository interface {
	Get(ctx context.Context, id int64) (*Carrier, error)
	// List returns the active carriers enabled for shopID, by id. Zero lists all.
	List(ctx context.Context, shopID int64) ([]Carrier, error)
	// Save inserts the carrier when its id is zero and assigns the id.
	Save(ctx context.Context, c *Carrier) error
	Remove(ctx context.Context, id int64) error
}

// TypeShipmentRepository stores type shipments.
type TypeShipmentRepository interface {
	Get(ctx context.Context, id int64) (*TypeShipment, error)
	// ListByCarrier returns the carrier's type shipments by id.
	ListByCarrier(ctx context.Context, carrierID int64) ([]TypeShipment, error)
	// FindByReference returns the type shipments mapping a reference carrier id.
	FindByReference(ctx context.Context, referenceCarrierID int64) ([]TypeShipment, error)
	Save(ctx context.Context, t *TypeShipment) error
	Remove(ctx context.Context, id int64) error
}

// InfoPackageRepository stores info packages.
type InfoPackageRepository interface {
	Get(ctx context.Context, id int64) (*InfoPackage, error)
	// Lock reads the package and holds it until the transaction ends.
	Lock(ctx context.Context, id int64) (*InfoPackage, error)
	Save(ctx context.Context, p *InfoPackage) error
}

// ShipmentRepository stores shipments.
type ShipmentRepository interface {
	Get(ctx context.Context, id int64) (*Shipment, error)
	// FindActiveByPackage returns ErrShipmentNotFound when the package is unused.
	FindActiveByPackage(ctx context.Context, infoPackageID int64) (*Shipment, error)
	// Create fails with ErrShipmentAlreadyExists when the package already has
	// an active shipment.
	Create(ctx context.Context, s *Shipment) error
	Remove(ctx context.Context, id int64) error
}

// LabelRepository stores labels.
type LabelRepository interface {
	ListByShipment(ctx context.Context, shipmentID int64) ([]Label, error)
	Get(ctx context.Context, shipmentID, labelID int64) (*Label, error)
	Create(ctx context.Context, l *Label) error
	MarkPrinted(ctx context.Context, shipmentID, labelID int64) error
	RemoveByShipment(ctx context.Context, shipmentID int64) error
}

// RuleRepository stores validation rules.
type RuleRepository interface {
	Get(ctx context.Context, id int64) (*ValidationRule, error)
	// ListInScope returns the rules scoped to the shop and shop group, plus
	// unscoped ones, by id. Rules with Active unset are included.
	ListInScope(ctx context.Context, shopID, shopGroupID int64) ([]ValidationRule, error)
	Save(ctx context.Context, r *ValidationRule) error
	Remove(ctx context.Context, id int64) error
}

// LogFilter narrows a log listing. Zero fields are ignored.
type LogFilter struct {
	OrderID       int64
	InfoPackageID int64
	Name          string
	Limit         int
}

// LogRepository stores log entries. Entries are never updated.
type LogRepository interface {
	Append(ctx context.Context, e *LogEntry) error
	Get(ctx context.Context, id int64) (*LogEntry, error)
	// List returns entries newest first.
	List(ctx context.Context, f LogFilter) ([]LogEntry, error)
}

// Store groups the repositories of one backend.
type Store interface {
	Carriers() CarrierRepository
	TypeShipments() TypeShipmentRepository
	InfoPackages() InfoPackageRepository
	Shipments() ShipmentRepository
	Labels() LabelRepository
	Rules() RuleRepository
	Logs() LogRepository

	// WithinTx runs fn in a transaction. fn must use the Store it receives.
	// A non-nil error from fn rolls the transaction back. Commit conflicts are
	// reported as ErrConcurrentUpdate.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

// OrderProvider looks orders up in the host platform.
type OrderProvider interface {
	// Order returns ErrOrderNotFound when the order does not exist.
	Order(ctx context.Context, orderID int64) (*Order, error)
}
