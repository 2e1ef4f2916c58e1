package sqlstore

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/pkg/rules"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"gorm.io/datatypes"
)

// Table rows. Id lists, configuration entries and rule clauses are JSON columns.

type carrierModel struct {
	ID        int64          `gorm:"primaryKey"`
	Name      string         `gorm:"size:128;not null"`
	ShortName string         `gorm:"size:32;not null;index"`
	Icon      string         `gorm:"size:255"`
	ShopIDs   datatypes.JSON `gorm:"column:shop_ids"`
	Active    bool           `gorm:"not null"`
	Config    datatypes.JSON
	State     string `gorm:"size:16;not null;default:active;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (carrierModel) TableName() string { return "carriers" }

type typeShipmentModel struct {
	ID                 int64  `gorm:"primaryKey"`
	CarrierID          int64  `gorm:"not null;index"`
	Name               string `gorm:"size:128;not null"`
	BusinessCode       string `gorm:"size:64;not null"`
	ReferenceCarrierID int64  `gorm:"not null;index"`
	Active             bool   `gorm:"not null"`
	Config             datatypes.JSON
	State              string `gorm:"size:16;not null;default:active;index"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (typeShipmentModel) TableName() string { return "type_shipments" }

type infoPackageModel struct {
	ID                 int64   `gorm:"primaryKey"`
	OrderID            int64   `gorm:"not null;index"`
	ShopID             int64   `gorm:"not null"`
	ReferenceCarrierID int64   `gorm:"not null"`
	TypeShipmentID     int64   `gorm:"not null;default:0"`
	Quantity           int     `gorm:"not null;default:1"`
	Weight             float64 `gorm:"not null"`
	Length             float64
	Width              float64
	Height             float64
	CashOnDelivery     decimal.Decimal `gorm:"type:decimal(20,6);not null;default:0"`
	HourFrom           string          `gorm:"size:8"`
	HourUntil          string          `gorm:"size:8"`
	Return             bool            `gorm:"column:is_return;not null;default:false"`
	RCS                string          `gorm:"column:rcs;size:32"`
	VSEC               string          `gorm:"column:vsec;size:32"`
	DOrig              string          `gorm:"column:dorig;size:32"`
	State              string          `gorm:"size:16;not null;default:active"`
	CreatedAt          time.Time
}

func (infoPackageModel) TableName() string { return "info_packages" }

type shipmentModel struct {
	ID             int64  `gorm:"primaryKey"`
	OrderID        int64  `gorm:"not null;index"`
	OrderReference string `gorm:"size:64"`
	ShipmentNumber string `gorm:"size:64;index"`
	InfoPackageID  int64  `gorm:"not null;index"`
	CompanyID      int64  `gorm:"not null"`
	TypeShipmentID int64  `gorm:"not null"`
	ShopID         int64  `gorm:"not null"`
	Product        string `gorm:"size:64"`
	Request        []byte
	Response       []byte
	State          string `gorm:"size:16;not null;default:active"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (shipmentModel) TableName() string { return "shipments" }

type labelModel struct {
	ID          int64  `gorm:"primaryKey"`
	ShipmentID  int64  `gorm:"not null;index"`
	TrackerCode string `gorm:"size:64;not null"`
	LabelType   string `gorm:"size:16;not null"`
	Format      string `gorm:"size:8;not null"`
	Printed     bool   `gorm:"not null;default:false"`
	Content     string `gorm:"type:text;not null"`
	State       string `gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time
}

func (labelModel) TableName() string { return "labels" }

type ruleModel struct {
	ID          int64  `gorm:"primaryKey"`
	Name        string `gorm:"size:128;not null"`
	Priority    int    `gorm:"not null;default:0;index"`
	Active      bool   `gorm:"not null"`
	ShopID      *int64 `gorm:"index"`
	ShopGroupID *int64 `gorm:"index"`
	Conditions  datatypes.JSON
	Effects     datatypes.JSON
	State       string `gorm:"size:16;not null;default:active"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (ruleModel) TableName() string { return "validation_rules" }

type logModel struct {
	ID            int64  `gorm:"primaryKey"`
	Name          string `gorm:"size:64;not null;index"`
	OrderID       int64  `gorm:"not null;index"`
	InfoPackageID int64  `gorm:"not null;index"`
	Carrier       string `gorm:"size:32"`
	Request       []byte
	Response      []byte
	Error         string `gorm:"type:text"`
	CorrelationID string `gorm:"size:36"`
	State         string `gorm:"size:16;not null;default:active"`
	CreatedAt     time.Time
}

func (logModel) TableName() string { return "log_entries" }

func allModels() []any {
	return []any{
		&carrierModel{}, &typeShipmentModel{}, &infoPackageModel{},
		&shipmentModel{}, &labelModel{}, &ruleModel{}, &logModel{},
	}
}

// ============================================================================
// Conversions
// ============================================================================

func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func fromJSON(data datatypes.JSON, out any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}

func toCarrierModel(c *domain.Carrier) (*carrierModel, error) {
	shops, err := toJSON(c.ShopIDs)
	if err != nil {
		return nil, err
	}
	cfg, err := toJSON(c.Config)
	if err != nil {
		return nil, err
	}
	return &carrierModel{
		ID:        c.ID,
		Name:      c.Name,
		ShortName: c.ShortName,
		Icon:      c.Icon,
		ShopIDs:   shops,
		Active:    c.Active,
		Config:    cfg,
		State:     string(c.State),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}, nil
}

func (m *carrierModel) toDomain() (*domain.Carrier, error) {
	c := &domain.Carrier{
		ID:        m.ID,
		Name:      m.Name,
		ShortName: m.ShortName,
		Icon:      m.Icon,
		Active:    m.Active,
		State:     domain.State(m.State),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := fromJSON(m.ShopIDs, &c.ShopIDs); err != nil {
		return nil, err
	}
	if err := fromJSON(m.Config, &c.Config); err != nil {
		return nil, err
	}
	return c, nil
}

func toTypeShipmentModel(t *domain.TypeShipment) (*typeShipmentModel, error) {
	cfg, err := toJSON(t.Config)
	if err != nil {
		return nil, err
	}
	return &typeShipmentModel{
		ID:                 t.ID,
		CarrierID:          t.CarrierID,
		Name:               t.Name,
		BusinessCode:       t.BusinessCode,
		ReferenceCarrierID: t.ReferenceCarrierID,
		Active:             t.Active,
		Config:             cfg,
		State:              string(t.State),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}, nil
}

func (m *typeShipmentModel) toDomain() (*domain.TypeShipment, error) {
	t := &domain.TypeShipment{
		ID:                 m.ID,
		CarrierID:          m.CarrierID,
		Name:               m.Name,
		BusinessCode:       m.BusinessCode,
		ReferenceCarrierID: m.ReferenceCarrierID,
		Active:             m.Active,
		State:              domain.State(m.State),
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if err := fromJSON(m.Config, &t.Config); err != nil {
		return nil, err
	}
	return t, nil
}

func toInfoPackageModel(p *domain.InfoPackage) *infoPackageModel {
	return &infoPackageModel{
		ID:                 p.ID,
		OrderID:            p.OrderID,
		ShopID:             p.ShopID,
		ReferenceCarrierID: p.ReferenceCarrierID,
		TypeShipmentID:     p.TypeShipmentID,
		Quantity:           p.Quantity,
		Weight:             p.Weight,
		Length:             p.Length,
		Width:              p.Width,
		Height:             p.Height,
		CashOnDelivery:     p.CashOnDelivery,
		HourFrom:           p.HourFrom,
		HourUntil:          p.HourUntil,
		Return:             p.Return,
		RCS:                p.RCS,
		VSEC:               p.VSEC,
		DOrig:              p.DOrig,
		State:              string(p.State),
		CreatedAt:          p.CreatedAt,
	}
}

func (m *infoPackageModel) toDomain() *domain.InfoPackage {
	return &domain.InfoPackage{
		ID:                 m.ID,
		OrderID:            m.OrderID,
		ShopID:             m.ShopID,
		ReferenceCarrierID: m.ReferenceCarrierID,
		TypeShipmentID:     m.TypeShipmentID,
		Quantity:           m.Quantity,
		Weight:             m.Weight,
		Length:             m.Length,
		Width:              m.Width,
		Height:             m.Height,
		CashOnDelivery:     m.CashOnDelivery,
		HourFrom:           m.HourFrom,
		HourUntil:          m.HourUntil,
		Return:             m.Return,
		RCS:                m.RCS,
		VSEC:               m.VSEC,
		DOrig:              m.DOrig,
		State:              domain.State(m.State),
		CreatedAt:          m.CreatedAt,
	}
}

func toShipmentModel(s *domain.Shipment) *shipmentModel {
	return &shipmentModel{
		ID:             s.ID,
		OrderID:        s.OrderID,
		OrderReference: s.OrderReference,
		ShipmentNumber: s.ShipmentNumber,
		InfoPackageID:  s.InfoPackageID,
		CompanyID:      s.CompanyID,
		TypeShipmentID: s.TypeShipmentID,
		ShopID:         s.ShopID,
		Product:        s.Product,
		Request:        s.Request,
		Response:       s.Response,
		State:          string(s.State),
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

func (m *shipmentModel) toDomain() *domain.Shipment {
	return &domain.Shipment{
		ID:             m.ID,
		OrderID:        m.OrderID,
		OrderReference: m.OrderReference,
		ShipmentNumber: m.ShipmentNumber,
		InfoPackageID:  m.InfoPackageID,
		CompanyID:      m.CompanyID,
		TypeShipmentID: m.TypeShipmentID,
		ShopID:         m.ShopID,
		Product:        m.Product,
		Request:        m.Request,
		Response:       m.Response,
		State:          domain.State(m.State),
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toLabelModel(l *domain.Label) *labelModel {
	return &labelModel{
		ID:          l.ID,
		ShipmentID:  l.ShipmentID,
		TrackerCode: l.TrackerCode,
		LabelType:   string(l.Type),
		Format:      string(l.Format),
		Printed:     l.Printed,
		Content:     l.Content,
		State:       string(l.State),
		CreatedAt:   l.CreatedAt,
	}
}

func (m *labelModel) toDomain() domain.Label {
	return domain.Label{
		ID:          m.ID,
		ShipmentID:  m.ShipmentID,
		TrackerCode: m.TrackerCode,
		Type:        shipper.LabelType(m.LabelType),
		Format:      shipper.LabelFormat(m.Format),
		Printed:     m.Printed,
		Content:     m.Content,
		State:       domain.State(m.State),
		CreatedAt:   m.CreatedAt,
	}
}

func toRuleModel(r *domain.ValidationRule) (*ruleModel, error) {
	conds, err := toJSON(r.Conditions)
	if err != nil {
		return nil, err
	}
	effects, err := toJSON(r.Effects)
	if err != nil {
		return nil, err
	}
	return &ruleModel{
		ID:          r.ID,
		Name:        r.Name,
		Priority:    r.Priority,
		Active:      r.Active,
		ShopID:      r.Scope.ShopID,
		ShopGroupID: r.Scope.ShopGroupID,
		Conditions:  conds,
		Effects:     effects,
		State:       string(r.State),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func (m *ruleModel) toDomain() (*domain.ValidationRule, error) {
	r := &domain.ValidationRule{
		Rule: rules.Rule{
			ID:       m.ID,
			Name:     m.Name,
			Priority: m.Priority,
			Active:   m.Active,
			Scope:    rules.Scope{ShopID: m.ShopID, ShopGroupID: m.ShopGroupID},
		},
		State:     domain.State(m.State),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if err := fromJSON(m.Conditions, &r.Conditions); err != nil {
		return nil, err
	}
	if err := fromJSON(m.Effects, &r.Effects); err != nil {
		return nil, err
	}
	return r, nil
}

func toLogModel(e *domain.LogEntry) *logModel {
	return &logModel{
		ID:            e.ID,
		Name:          e.Name,
		OrderID:       e.OrderID,
		InfoPackageID: e.InfoPackageID,
		Carrier:       e.Carrier,
		Request:       e.Request,
		Response:      e.Response,
		Error:         e.Error,
		CorrelationID: e.CorrelationID,
		State:         string(e.State),
		CreatedAt:     e.CreatedAt,
	}
}

func (m *logModel) toDomain() domain.LogEntry {
	return domain.LogEntry{
		ID:            m.ID,
		Name:          m.Name,
		OrderID:       m.OrderID,
		InfoPackageID: m.InfoPackageID,
		Carrier:       m.Carrier,
		Request:       m.Request,
		Response:      m.Response,
		Error:         m.Error,
		CorrelationID: m.CorrelationID,
		State:         domain.State(m.State),
		CreatedAt:     m.CreatedAt,
	}
}
