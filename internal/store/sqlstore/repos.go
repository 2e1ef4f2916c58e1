package sqlstore

import (
	"context"

	"github.com/tournevent/carrierhub/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var active = string(domain.StateActive)

// ============================================================================
// Carriers
// ============================================================================

type carriers struct{ s *Store }

func (r carriers) Get(ctx context.Context, id int64) (*domain.Carrier, error) {
	var m carrierModel
	if err := r.s.conn(ctx).Where("id = ? AND state = ?", id, active).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrCarrierNotFound, id)
	}
	return m.toDomain()
}

func (r carriers) List(ctx context.Context, shopID int64) ([]domain.Carrier, error) {
	var ms []carrierModel
	if err := r.s.conn(ctx).Where("state = ?", active).Order("id").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Carrier, 0, len(ms))
	for i := range ms {
		c, err := ms[i].toDomain()
		if err != nil {
			return nil, err
		}
		// Shop lists live in a JSON column; filter here to stay dialect neutral.
		if c.EnabledFor(shopID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r carriers) Save(ctx context.Context, c *domain.Carrier) error {
	if c.ID == 0 {
		c.State = domain.StateActive
		m, err := toCarrierModel(c)
		if err != nil {
			return err
		}
		if err := r.s.conn(ctx).Create(m).Error; err != nil {
			return err
		}
		c.ID, c.CreatedAt, c.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
		return nil
	}

	prev, err := r.Get(ctx, c.ID)
	if err != nil {
		return err
	}
	c.State, c.CreatedAt = prev.State, prev.CreatedAt
	m, err := toCarrierModel(c)
	if err != nil {
		return err
	}
	if err := r.s.conn(ctx).Save(m).Error; err != nil {
		return err
	}
	c.UpdatedAt = m.UpdatedAt
	return nil
}

func (r carriers) Remove(ctx context.Context, id int64) error {
	return softDelete(r.s.conn(ctx).Model(&carrierModel{}).Where("id = ?", id), domain.ErrCarrierNotFound, id)
}

// ============================================================================
// Type shipments
// ============================================================================

type typeShipments struct{ s *Store }

func (r typeShipments) Get(ctx context.Context, id int64) (*domain.TypeShipment, error) {
	var m typeShipmentModel
	if err := r.s.conn(ctx).Where("id = ? AND state = ?", id, active).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrTypeShipmentNotFound, id)
	}
	return m.toDomain()
}

func (r typeShipments) find(db *gorm.DB) ([]domain.TypeShipment, error) {
	var ms []typeShipmentModel
	if err := db.Where("state = ?", active).Order("id").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.TypeShipment, 0, len(ms))
	for i := range ms {
		t, err := ms[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

func (r typeShipments) ListByCarrier(ctx context.Context, carrierID int64) ([]domain.TypeShipment, error) {
	return r.find(r.s.conn(ctx).Where("carrier_id = ?", carrierID))
}

func (r typeShipments) FindByReference(ctx context.Context, referenceCarrierID int64) ([]domain.TypeShipment, error) {
	return r.find(r.s.conn(ctx).Where("reference_carrier_id = ?", referenceCarrierID))
}

func (r typeShipments) Save(ctx context.Context, t *domain.TypeShipment) error {
	if t.ID == 0 {
		t.State = domain.StateActive
		m, err := toTypeShipmentModel(t)
		if err != nil {
			return err
		}
		if err := r.s.conn(ctx).Create(m).Error; err != nil {
			return referenceConflict(err, t)
		}
		t.ID, t.CreatedAt, t.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
		return nil
	}

	prev, err := r.Get(ctx, t.ID)
	if err != nil {
		return err
	}
	t.State, t.CreatedAt = prev.State, prev.CreatedAt
	m, err := toTypeShipmentModel(t)
	if err != nil {
		return err
	}
	if err := r.s.conn(ctx).Save(m).Error; err != nil {
		return referenceConflict(err, t)
	}
	t.UpdatedAt = m.UpdatedAt
	return nil
}

// referenceConflict maps a hit on ux_type_shipments_active_reference.
func referenceConflict(err error, t *domain.TypeShipment) error {
	if isUniqueViolation(err) {
		return domain.ErrTypeShipmentCarrierConflict.
			Withf("reference carrier %d is already mapped by another active type shipment", t.ReferenceCarrierID).
			WithCause(err)
	}
	return err
}

func (r typeShipments) Remove(ctx context.Context, id int64) error {
	return softDelete(r.s.conn(ctx).Model(&typeShipmentModel{}).Where("id = ?", id), domain.ErrTypeShipmentNotFound, id)
}

// ============================================================================
// Info packages
// ============================================================================

type infoPackages struct{ s *Store }

func (r infoPackages) Get(ctx context.Context, id int64) (*domain.InfoPackage, error) {
	var m infoPackageModel
	if err := r.s.conn(ctx).Where("id = ? AND state = ?", id, active).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrInfoPackageNotFound, id)
	}
	return m.toDomain(), nil
}

// Lock selects the row FOR UPDATE; it is held until the transaction ends.
func (r infoPackages) Lock(ctx context.Context, id int64) (*domain.InfoPackage, error) {
	var m infoPackageModel
	err := r.s.conn(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND state = ?", id, active).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, domain.ErrInfoPackageNotFound, id)
	}
	return m.toDomain(), nil
}

func (r infoPackages) Save(ctx context.Context, p *domain.InfoPackage) error {
	if p.State == "" {
		p.State = domain.StateActive
	}
	m := toInfoPackageModel(p)
	if err := r.s.conn(ctx).Save(m).Error; err != nil {
		return err
	}
	p.ID, p.CreatedAt = m.ID, m.CreatedAt
	return nil
}

// ============================================================================
// Shipments
// ============================================================================

type shipments struct{ s *Store }

func (r shipments) Get(ctx context.Context, id int64) (*domain.Shipment, error) {
	var m shipmentModel
	if err := r.s.conn(ctx).Where("id = ? AND state = ?", id, active).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrShipmentNotFound, id)
	}
	return m.toDomain(), nil
}

func (r shipments) FindActiveByPackage(ctx context.Context, infoPackageID int64) (*domain.Shipment, error) {
	var m shipmentModel
	err := r.s.conn(ctx).
		Where("info_package_id = ? AND state = ?", infoPackageID, active).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, domain.ErrShipmentNotFound, infoPackageID)
	}
	return m.toDomain(), nil
}

func (r shipments) Create(ctx context.Context, s *domain.Shipment) error {
	var n int64
	if err := r.s.conn(ctx).Model(&shipmentModel{}).
		Where("info_package_id = ? AND state = ?", s.InfoPackageID, active).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return domain.ErrShipmentAlreadyExists.Withf("info package %d already has an active shipment", s.InfoPackageID)
	}

	s.State = domain.StateActive
	m := toShipmentModel(s)
	if err := r.s.conn(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrShipmentAlreadyExists.
				Withf("info package %d already has an active shipment", s.InfoPackageID).
				WithCause(err)
		}
		return err
	}
	s.ID, s.CreatedAt, s.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r shipments) Remove(ctx context.Context, id int64) error {
	return softDelete(r.s.conn(ctx).Model(&shipmentModel{}).Where("id = ?", id), domain.ErrShipmentNotFound, id)
}

// ============================================================================
// Labels
// ============================================================================

type labels struct{ s *Store }

func (r labels) ListByShipment(ctx context.Context, shipmentID int64) ([]domain.Label, error) {
	var ms []labelModel
	if err := r.s.conn(ctx).
		Where("shipment_id = ? AND state = ?", shipmentID, active).
		Order("id").
		Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Label, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toDomain())
	}
	return out, nil
}

func (r labels) Get(ctx context.Context, shipmentID, labelID int64) (*domain.Label, error) {
	var m labelModel
	err := r.s.conn(ctx).
		Where("id = ? AND shipment_id = ? AND state = ?", labelID, shipmentID, active).
		First(&m).Error
	if err != nil {
		return nil, notFound(err, domain.ErrLabelNotFound, labelID)
	}
	l := m.toDomain()
	return &l, nil
}

func (r labels) Create(ctx context.Context, l *domain.Label) error {
	l.State = domain.StateActive
	m := toLabelModel(l)
	if err := r.s.conn(ctx).Create(m).Error; err != nil {
		return err
	}
	l.ID, l.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r labels) MarkPrinted(ctx context.Context, shipmentID, labelID int64) error {
	res := r.s.conn(ctx).Model(&labelModel{}).
		Where("id = ? AND shipment_id = ? AND state = ?", labelID, shipmentID, active).
		Update("printed", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrLabelNotFound.Withf("label not found: %d", labelID)
	}
	return nil
}

func (r labels) RemoveByShipment(ctx context.Context, shipmentID int64) error {
	return r.s.conn(ctx).Model(&labelModel{}).
		Where("shipment_id = ? AND state = ?", shipmentID, active).
		Update("state", string(domain.StateDeleted)).Error
}

// ============================================================================
// Validation rules
// ============================================================================

type ruleRepo struct{ s *Store }

func (r ruleRepo) Get(ctx context.Context, id int64) (*domain.ValidationRule, error) {
	var m ruleModel
	if err := r.s.conn(ctx).Where("id = ? AND state = ?", id, active).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrValidationRuleNotFound, id)
	}
	return m.toDomain()
}

func (r ruleRepo) ListInScope(ctx context.Context, shopID, shopGroupID int64) ([]domain.ValidationRule, error) {
	var ms []ruleModel
	err := r.s.conn(ctx).
		Where("state = ?", active).
		Where("(shop_id IS NULL OR shop_id = ?)", shopID).
		Where("(shop_group_id IS NULL OR shop_group_id = ?)", shopGroupID).
		Order("id").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.ValidationRule, 0, len(ms))
	for i := range ms {
		v, err := ms[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (r ruleRepo) Save(ctx context.Context, v *domain.ValidationRule) error {
	if v.ID == 0 {
		v.State = domain.StateActive
		m, err := toRuleModel(v)
		if err != nil {
			return err
		}
		if err := r.s.conn(ctx).Create(m).Error; err != nil {
			return err
		}
		v.ID, v.CreatedAt, v.UpdatedAt = m.ID, m.CreatedAt, m.UpdatedAt
		return nil
	}

	prev, err := r.Get(ctx, v.ID)
	if err != nil {
		return err
	}
	v.State, v.CreatedAt = prev.State, prev.CreatedAt
	m, err := toRuleModel(v)
	if err != nil {
		return err
	}
	if err := r.s.conn(ctx).Save(m).Error; err != nil {
		return err
	}
	v.UpdatedAt = m.UpdatedAt
	return nil
}

func (r ruleRepo) Remove(ctx context.Context, id int64) error {
	return softDelete(r.s.conn(ctx).Model(&ruleModel{}).Where("id = ?", id), domain.ErrValidationRuleNotFound, id)
}

// ============================================================================
// Log entries
// ============================================================================

type logs struct{ s *Store }

func (r logs) Append(ctx context.Context, e *domain.LogEntry) error {
	e.State = domain.StateActive
	m := toLogModel(e)
	if err := r.s.conn(ctx).Create(m).Error; err != nil {
		return err
	}
	e.ID, e.CreatedAt = m.ID, m.CreatedAt
	return nil
}

func (r logs) Get(ctx context.Context, id int64) (*domain.LogEntry, error) {
	var m logModel
	if err := r.s.conn(ctx).Where("id = ? AND state = ?", id, active).First(&m).Error; err != nil {
		return nil, notFound(err, domain.ErrLogEntryNotFound, id)
	}
	e := m.toDomain()
	return &e, nil
}

func (r logs) List(ctx context.Context, f domain.LogFilter) ([]domain.LogEntry, error) {
	q := r.s.conn(ctx).Where("state = ?", active)
	if f.OrderID != 0 {
		q = q.Where("order_id = ?", f.OrderID)
	}
	if f.InfoPackageID != 0 {
		q = q.Where("info_package_id = ?", f.InfoPackageID)
	}
	if f.Name != "" {
		q = q.Where("name = ?", f.Name)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var ms []logModel
	if err := q.Order("id DESC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LogEntry, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toDomain())
	}
	return out, nil
}

// softDelete flags the active rows selected by q as deleted.
func softDelete(q *gorm.DB, nf *domain.Error, id int64) error {
	res := q.Where("state = ?", active).Update("state", string(domain.StateDeleted))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return nf.Withf("%s: %d", nf.Message, id)
	}
	return nil
}
