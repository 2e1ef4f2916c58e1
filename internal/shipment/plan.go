package shipment

import (
	"context"
	"errors"

	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/pkg/shipper"
)

// plan is everything needed to book one package with one carrier product.
type plan struct {
	pkg          *domain.InfoPackage
	order        *domain.Order
	carrier      *domain.Carrier
	typeShipment *domain.TypeShipment
	adapter      shipper.Adapter
	config       shipper.Configuration
}

// prepare runs the generation preconditions in their fixed order.
func (g *Generator) prepare(ctx context.Context, infoPackageID, shopID int64) (*plan, error) {
	pkg, err := g.store.InfoPackages().Get(ctx, infoPackageID)
	if err != nil {
		return nil, err
	}
	if shopID != 0 && pkg.ShopID != shopID {
		return nil, domain.ErrInfoPackageNotFound.Withf("info package %d not found in shop %d", infoPackageID, shopID)
	}

	order, err := g.orders.Order(ctx, pkg.OrderID)
	if err != nil {
		return nil, err
	}

	if err := ensureNoActiveShipment(ctx, g.store, pkg.ID); err != nil {
		return nil, err
	}

	if shopID == 0 {
		shopID = pkg.ShopID
	}
	carrier, adapter, err := g.carrierFor(ctx, pkg, shopID)
	if err != nil {
		return nil, err
	}

	base := shipper.MergeConfiguration(g.cfg.Defaults, carrier.Config.Map())
	if missing := base.Missing(carrier.Config.RequiredKeys()...); len(missing) > 0 {
		return nil, missingKeys(carrier, missing)
	}

	all, err := g.store.TypeShipments().ListByCarrier(ctx, carrier.ID)
	if err != nil {
		return nil, err
	}
	var usable []domain.TypeShipment
	for _, t := range all {
		if t.Usable() {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return nil, domain.ErrTypeShipmentsMissing.Withf("carrier %s has no active type shipment", carrier.ShortName)
	}
	ts := chooseTypeShipment(pkg, usable)

	cfg := shipper.MergeConfiguration(base, ts.Config.Map())
	if missing := cfg.Missing(ts.Config.RequiredKeys()...); len(missing) > 0 {
		return nil, missingKeys(carrier, missing)
	}

	return &plan{
		pkg:          pkg,
		order:        order,
		carrier:      carrier,
		typeShipment: ts,
		adapter:      adapter,
		config:       cfg,
	}, nil
}

// carrierFor resolves the carrier mapped by the package's reference carrier
// and its adapter.
func (g *Generator) carrierFor(ctx context.Context, pkg *domain.InfoPackage, shopID int64) (*domain.Carrier, shipper.Adapter, error) {
	refs, err := g.store.TypeShipments().FindByReference(ctx, pkg.ReferenceCarrierID)
	if err != nil {
		return nil, nil, err
	}
	if len(refs) == 0 {
		return nil, nil, domain.ErrCarrierNotConfigured.Withf("no type shipment maps reference carrier %d", pkg.ReferenceCarrierID)
	}
	carrierID := refs[0].CarrierID
	for _, t := range refs {
		if t.Usable() {
			carrierID = t.CarrierID
			break
		}
	}

	carrier, err := g.store.Carriers().Get(ctx, carrierID)
	if errors.Is(err, domain.ErrCarrierNotFound) {
		return nil, nil, domain.ErrCarrierNotConfigured.Withf("carrier %d is deleted", carrierID).WithCause(err)
	}
	if err != nil {
		return nil, nil, err
	}
	if !carrier.Usable(shopID) {
		return nil, nil, domain.ErrCarrierNotConfigured.Withf("carrier %s is disabled for shop %d", carrier.ShortName, shopID)
	}

	adapter, err := g.registry.Get(carrier.ShortName)
	if err != nil {
		return nil, nil, domain.ErrCarrierNotConfigured.Withf("no adapter registered for carrier %s", carrier.ShortName).WithCause(err)
	}
	return carrier, adapter, nil
}

// chooseTypeShipment prefers the package's own type shipment, then the one
// mapping its reference carrier, then the lowest id.
func chooseTypeShipment(pkg *domain.InfoPackage, usable []domain.TypeShipment) *domain.TypeShipment {
	if pkg.TypeShipmentID != 0 {
		for i := range usable {
			if usable[i].ID == pkg.TypeShipmentID {
				return &usable[i]
			}
		}
	}
	for i := range usable {
		if usable[i].ReferenceCarrierID == pkg.ReferenceCarrierID {
			return &usable[i]
		}
	}
	return &usable[0]
}

func missingKeys(carrier *domain.Carrier, keys []string) error {
	fields := make([]domain.FieldError, len(keys))
	for i, k := range keys {
		fields[i] = domain.FieldError{Field: k, Rule: "required"}
	}
	return domain.ErrCarrierNotConfigured.
		Withf("carrier %s is missing required configuration", carrier.ShortName).
		WithFields(fields)
}

// ensureNoActiveShipment fails with ErrShipmentAlreadyExists when the package
// already has an active shipment.
func ensureNoActiveShipment(ctx context.Context, store domain.Store, infoPackageID int64) error {
	existing, err := store.Shipments().FindActiveByPackage(ctx, infoPackageID)
	switch {
	case err == nil:
		return domain.ErrShipmentAlreadyExists.Withf("info package %d already has shipment %d", infoPackageID, existing.ID)
	case errors.Is(err, domain.ErrShipmentNotFound):
		return nil
	default:
		return err
	}
}

// payloadFor builds the carrier-agnostic shipment description.
func payloadFor(p *plan) *shipper.ShipmentPayload {
	weight := p.pkg.Weight
	if weight <= 0 {
		weight = p.order.Weight
	}
	return &shipper.ShipmentPayload{
		OrderID:        p.order.ID,
		OrderReference: p.order.Reference,
		InfoPackageID:  p.pkg.ID,
		ShopID:         p.pkg.ShopID,
		ProductCode:    p.typeShipment.BusinessCode,
		Sender:         p.config.Sender(),
		Recipient:      p.order.Recipient,
		Parcel: shipper.Parcel{
			Quantity: p.pkg.Quantity,
			Weight:   weight,
			Length:   p.pkg.Length,
			Width:    p.pkg.Width,
			Height:   p.pkg.Height,
		},
		CashOnDelivery: p.pkg.CashOnDelivery,
		Currency:       p.config.Get(shipper.KeyCurrency, p.order.Currency),
		HourFrom:       p.pkg.HourFrom,
		HourUntil:      p.pkg.HourUntil,
		Return:         p.pkg.Return,
		RCS:            p.pkg.RCS,
		VSEC:           p.pkg.VSEC,
		DOrig:          p.pkg.DOrig,
	}
}
