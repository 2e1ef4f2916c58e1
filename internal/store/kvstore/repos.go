package kvstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/dgraph-io/badger/v4"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/pkg/rules"
)

// ============================================================================
// Carriers
// ============================================================================

type carriers struct{ s *Store }

func (r carriers) Get(ctx context.Context, id int64) (*domain.Carrier, error) {
	var out *domain.Carrier
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		c, err := get[domain.Carrier](txn, idKey(prefixCarrier, id))
		if err != nil {
			return notFound(err, domain.ErrCarrierNotFound, id)
		}
		if c.State != domain.StateActive {
			return domain.ErrCarrierNotFound.Withf("carrier not found: %d", id)
		}
		out = c
		return nil
	})
	return out, err
}

func (r carriers) List(ctx context.Context, shopID int64) ([]domain.Carrier, error) {
	var out []domain.Carrier
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixCarrier), false, func(c *domain.Carrier) bool {
			if c.State == domain.StateActive && c.EnabledFor(shopID) {
				out = append(out, *c)
			}
			return true
		})
	})
	return out, err
}

func (r carriers) Save(ctx context.Context, c *domain.Carrier) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		now := r.s.now().UTC()
		if c.ID == 0 {
			id, err := r.s.nextID("carrier")
			if err != nil {
				return err
			}
			c.ID = id
			c.CreatedAt = now
			c.State = domain.StateActive
		} else {
			prev, err := get[domain.Carrier](txn, idKey(prefixCarrier, c.ID))
			if err != nil {
				return notFound(err, domain.ErrCarrierNotFound, c.ID)
			}
			if prev.State != domain.StateActive {
				return domain.ErrCarrierNotFound.Withf("carrier not found: %d", c.ID)
			}
			c.CreatedAt = prev.CreatedAt
			c.State = prev.State
		}
		c.UpdatedAt = now
		return put(txn, idKey(prefixCarrier, c.ID), c)
	})
}

func (r carriers) Remove(ctx context.Context, id int64) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		c, err := get[domain.Carrier](txn, idKey(prefixCarrier, id))
		if err != nil {
			return notFound(err, domain.ErrCarrierNotFound, id)
		}
		if c.State != domain.StateActive {
			return domain.ErrCarrierNotFound.Withf("carrier not found: %d", id)
		}
		c.State = domain.StateDeleted
		c.UpdatedAt = r.s.now().UTC()
		return put(txn, idKey(prefixCarrier, id), c)
	})
}

// ============================================================================
// Type shipments
// ============================================================================

type typeShipments struct{ s *Store }

func (r typeShipments) Get(ctx context.Context, id int64) (*domain.TypeShipment, error) {
	var out *domain.TypeShipment
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		t, err := get[domain.TypeShipment](txn, idKey(prefixTypeShipment, id))
		if err != nil {
			return notFound(err, domain.ErrTypeShipmentNotFound, id)
		}
		if t.State != domain.StateActive {
			return domain.ErrTypeShipmentNotFound.Withf("type shipment not found: %d", id)
		}
		out = t
		return nil
	})
	return out, err
}

func (r typeShipments) list(ctx context.Context, keep func(t *domain.TypeShipment) bool) ([]domain.TypeShipment, error) {
	var out []domain.TypeShipment
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixTypeShipment), false, func(t *domain.TypeShipment) bool {
			if t.State == domain.StateActive && keep(t) {
				out = append(out, *t)
			}
			return true
		})
	})
	return out, err
}

func (r typeShipments) ListByCarrier(ctx context.Context, carrierID int64) ([]domain.TypeShipment, error) {
	return r.list(ctx, func(t *domain.TypeShipment) bool { return t.CarrierID == carrierID })
}

func (r typeShipments) FindByReference(ctx context.Context, referenceCarrierID int64) ([]domain.TypeShipment, error) {
	return r.list(ctx, func(t *domain.TypeShipment) bool { return t.ReferenceCarrierID == referenceCarrierID })
}

func (r typeShipments) Save(ctx context.Context, t *domain.TypeShipment) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		now := r.s.now().UTC()
		if t.ID == 0 {
			id, err := r.s.nextID("typeshipment")
			if err != nil {
				return err
			}
			t.ID = id
			t.CreatedAt = now
			t.State = domain.StateActive
		} else {
			prev, err := get[domain.TypeShipment](txn, idKey(prefixTypeShipment, t.ID))
			if err != nil {
				return notFound(err, domain.ErrTypeShipmentNotFound, t.ID)
			}
			if prev.State != domain.StateActive {
				return domain.ErrTypeShipmentNotFound.Withf("type shipment not found: %d", t.ID)
			}
			t.CreatedAt = prev.CreatedAt
			t.State = prev.State
		}
		t.UpdatedAt = now
		return put(txn, idKey(prefixTypeShipment, t.ID), t)
	})
}

func (r typeShipments) Remove(ctx context.Context, id int64) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		t, err := get[domain.TypeShipment](txn, idKey(prefixTypeShipment, id))
		if err != nil {
			return notFound(err, domain.ErrTypeShipmentNotFound, id)
		}
		if t.State != domain.StateActive {
			return domain.ErrTypeShipmentNotFound.Withf("type shipment not found: %d", id)
		}
		t.State = domain.StateDeleted
		t.UpdatedAt = r.s.now().UTC()
		return put(txn, idKey(prefixTypeShipment, id), t)
	})
}

// ============================================================================
// Info packages
// ============================================================================

type infoPackages struct{ s *Store }

func (r infoPackages) Get(ctx context.Context, id int64) (*domain.InfoPackage, error) {
	var out *domain.InfoPackage
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		p, err := get[domain.InfoPackage](txn, idKey(prefixInfoPackage, id))
		if err != nil {
			return notFound(err, domain.ErrInfoPackageNotFound, id)
		}
		if p.State != domain.StateActive {
			return domain.ErrInfoPackageNotFound.Withf("info package not found: %d", id)
		}
		out = p
		return nil
	})
	return out, err
}

// Lock reads the package inside the transaction. Badger tracks the read, so a
// concurrent writer of the same keys makes the later commit fail.
func (r infoPackages) Lock(ctx context.Context, id int64) (*domain.InfoPackage, error) {
	return r.Get(ctx, id)
}

func (r infoPackages) Save(ctx context.Context, p *domain.InfoPackage) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		if p.ID == 0 {
			id, err := r.s.nextID("infopackage")
			if err != nil {
				return err
			}
			p.ID = id
			p.CreatedAt = r.s.now().UTC()
		}
		if p.State == "" {
			p.State = domain.StateActive
		}
		return put(txn, idKey(prefixInfoPackage, p.ID), p)
	})
}

// ============================================================================
// Shipments
// ============================================================================

type shipments struct{ s *Store }

func (r shipments) Get(ctx context.Context, id int64) (*domain.Shipment, error) {
	var out *domain.Shipment
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		sh, err := get[domain.Shipment](txn, idKey(prefixShipment, id))
		if err != nil {
			return notFound(err, domain.ErrShipmentNotFound, id)
		}
		if sh.State != domain.StateActive {
			return domain.ErrShipmentNotFound.Withf("shipment not found: %d", id)
		}
		out = sh
		return nil
	})
	return out, err
}

func (r shipments) FindActiveByPackage(ctx context.Context, infoPackageID int64) (*domain.Shipment, error) {
	var out *domain.Shipment
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		id, err := packageIndex(txn, infoPackageID)
		if err != nil {
			return notFound(err, domain.ErrShipmentNotFound, infoPackageID)
		}
		sh, err := get[domain.Shipment](txn, idKey(prefixShipment, id))
		if err != nil {
			return notFound(err, domain.ErrShipmentNotFound, id)
		}
		out = sh
		return nil
	})
	return out, err
}

// Create writes the shipment and claims the package index key. The index read
// joins the transaction's conflict set.
func (r shipments) Create(ctx context.Context, sh *domain.Shipment) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		_, err := packageIndex(txn, sh.InfoPackageID)
		if err == nil {
			return domain.ErrShipmentAlreadyExists.Withf("info package %d already has an active shipment", sh.InfoPackageID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		id, err := r.s.nextID("shipment")
		if err != nil {
			return err
		}
		now := r.s.now().UTC()
		sh.ID = id
		sh.State = domain.StateActive
		sh.CreatedAt = now
		sh.UpdatedAt = now

		if err := put(txn, idKey(prefixShipment, id), sh); err != nil {
			return err
		}
		return txn.Set(idKey(prefixByPackage, sh.InfoPackageID), []byte(strconv.FormatInt(id, 10)))
	})
}

func (r shipments) Remove(ctx context.Context, id int64) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		sh, err := get[domain.Shipment](txn, idKey(prefixShipment, id))
		if err != nil {
			return notFound(err, domain.ErrShipmentNotFound, id)
		}
		if sh.State != domain.StateActive {
			return domain.ErrShipmentNotFound.Withf("shipment not found: %d", id)
		}
		sh.State = domain.StateDeleted
		sh.UpdatedAt = r.s.now().UTC()
		if err := put(txn, idKey(prefixShipment, id), sh); err != nil {
			return err
		}
		return txn.Delete(idKey(prefixByPackage, sh.InfoPackageID))
	})
}

func packageIndex(txn *badger.Txn, infoPackageID int64) (int64, error) {
	item, err := txn.Get(idKey(prefixByPackage, infoPackageID))
	if err != nil {
		return 0, err
	}
	var id int64
	err = item.Value(func(val []byte) error {
		var perr error
		id, perr = strconv.ParseInt(string(val), 10, 64)
		return perr
	})
	return id, err
}

// ============================================================================
// Labels
// ============================================================================

type labels struct{ s *Store }

func (r labels) ListByShipment(ctx context.Context, shipmentID int64) ([]domain.Label, error) {
	var out []domain.Label
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, labelPrefix(shipmentID), false, func(l *domain.Label) bool {
			if l.State == domain.StateActive {
				out = append(out, *l)
			}
			return true
		})
	})
	return out, err
}

func (r labels) Get(ctx context.Context, shipmentID, labelID int64) (*domain.Label, error) {
	var out *domain.Label
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		l, err := get[domain.Label](txn, labelKey(shipmentID, labelID))
		if err != nil {
			return notFound(err, domain.ErrLabelNotFound, labelID)
		}
		if l.State != domain.StateActive {
			return domain.ErrLabelNotFound.Withf("label not found: %d", labelID)
		}
		out = l
		return nil
	})
	return out, err
}

func (r labels) Create(ctx context.Context, l *domain.Label) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		id, err := r.s.nextID("label")
		if err != nil {
			return err
		}
		l.ID = id
		l.State = domain.StateActive
		l.CreatedAt = r.s.now().UTC()
		return put(txn, labelKey(l.ShipmentID, id), l)
	})
}

func (r labels) MarkPrinted(ctx context.Context, shipmentID, labelID int64) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		l, err := get[domain.Label](txn, labelKey(shipmentID, labelID))
		if err != nil {
			return notFound(err, domain.ErrLabelNotFound, labelID)
		}
		if l.State != domain.StateActive {
			return domain.ErrLabelNotFound.Withf("label not found: %d", labelID)
		}
		l.Printed = true
		return put(txn, labelKey(shipmentID, labelID), l)
	})
}

func (r labels) RemoveByShipment(ctx context.Context, shipmentID int64) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		var active []domain.Label
		if err := scan(txn, labelPrefix(shipmentID), false, func(l *domain.Label) bool {
			if l.State == domain.StateActive {
				active = append(active, *l)
			}
			return true
		}); err != nil {
			return err
		}
		for i := range active {
			active[i].State = domain.StateDeleted
			if err := put(txn, labelKey(shipmentID, active[i].ID), &active[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// ============================================================================
// Validation rules
// ============================================================================

type ruleRepo struct{ s *Store }

func (r ruleRepo) Get(ctx context.Context, id int64) (*domain.ValidationRule, error) {
	var out *domain.ValidationRule
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		v, err := get[domain.ValidationRule](txn, idKey(prefixRule, id))
		if err != nil {
			return notFound(err, domain.ErrValidationRuleNotFound, id)
		}
		if v.State != domain.StateActive {
			return domain.ErrValidationRuleNotFound.Withf("validation rule not found: %d", id)
		}
		out = v
		return nil
	})
	return out, err
}

func (r ruleRepo) ListInScope(ctx context.Context, shopID, shopGroupID int64) ([]domain.ValidationRule, error) {
	scope := rules.OrderContext{ShopID: shopID, ShopGroupID: shopGroupID}
	var out []domain.ValidationRule
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixRule), false, func(v *domain.ValidationRule) bool {
			if v.State == domain.StateActive && v.InScope(scope) {
				out = append(out, *v)
			}
			return true
		})
	})
	return out, err
}

func (r ruleRepo) Save(ctx context.Context, v *domain.ValidationRule) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		now := r.s.now().UTC()
		if v.ID == 0 {
			id, err := r.s.nextID("rule")
			if err != nil {
				return err
			}
			v.ID = id
			v.CreatedAt = now
			v.State = domain.StateActive
		} else {
			prev, err := get[domain.ValidationRule](txn, idKey(prefixRule, v.ID))
			if err != nil {
				return notFound(err, domain.ErrValidationRuleNotFound, v.ID)
			}
			if prev.State != domain.StateActive {
				return domain.ErrValidationRuleNotFound.Withf("validation rule not found: %d", v.ID)
			}
			v.CreatedAt = prev.CreatedAt
			v.State = prev.State
		}
		v.UpdatedAt = now
		return put(txn, idKey(prefixRule, v.ID), v)
	})
}

func (r ruleRepo) Remove(ctx context.Context, id int64) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		v, err := get[domain.ValidationRule](txn, idKey(prefixRule, id))
		if err != nil {
			return notFound(err, domain.ErrValidationRuleNotFound, id)
		}
		if v.State != domain.StateActive {
			return domain.ErrValidationRuleNotFound.Withf("validation rule not found: %d", id)
		}
		v.State = domain.StateDeleted
		v.UpdatedAt = r.s.now().UTC()
		return put(txn, idKey(prefixRule, id), v)
	})
}

// ============================================================================
// Log entries
// ============================================================================

type logs struct{ s *Store }

func (r logs) Append(ctx context.Context, e *domain.LogEntry) error {
	return r.s.update(ctx, func(txn *badger.Txn) error {
		id, err := r.s.nextID("log")
		if err != nil {
			return err
		}
		e.ID = id
		e.State = domain.StateActive
		if e.CreatedAt.IsZero() {
			e.CreatedAt = r.s.now().UTC()
		}
		return put(txn, idKey(prefixLog, id), e)
	})
}

func (r logs) Get(ctx context.Context, id int64) (*domain.LogEntry, error) {
	var out *domain.LogEntry
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		e, err := get[domain.LogEntry](txn, idKey(prefixLog, id))
		if err != nil {
			return notFound(err, domain.ErrLogEntryNotFound, id)
		}
		if e.State != domain.StateActive {
			return domain.ErrLogEntryNotFound.Withf("log entry not found: %d", id)
		}
		out = e
		return nil
	})
	return out, err
}

func (r logs) List(ctx context.Context, f domain.LogFilter) ([]domain.LogEntry, error) {
	var out []domain.LogEntry
	err := r.s.view(ctx, func(txn *badger.Txn) error {
		return scan(txn, []byte(prefixLog), true, func(e *domain.LogEntry) bool {
			if e.State != domain.StateActive ||
				(f.OrderID != 0 && e.OrderID != f.OrderID) ||
				(f.InfoPackageID != 0 && e.InfoPackageID != f.InfoPackageID) ||
				(f.Name != "" && e.Name != f.Name) {
				return true
			}
			out = append(out, *e)
			return f.Limit <= 0 || len(out) < f.Limit
		})
	})
	return out, err
}
