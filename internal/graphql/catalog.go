package graphql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/pkg/rules"
)

type configEntryInput struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Required bool   `json:"required"`
}

type carrierInput struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	ShortName string             `json:"shortName"`
	Icon      string             `json:"icon"`
	Active    bool               `json:"active"`
	ShopIDs   []int64            `json:"shopIds"`
	Config    []configEntryInput `json:"config"`
}

type typeShipmentInput struct {
	ID                 int64              `json:"id"`
	CarrierID          int64              `json:"carrierId"`
	Name               string             `json:"name"`
	BusinessCode       string             `json:"businessCode"`
	ReferenceCarrierID int64              `json:"referenceCarrierId"`
	Active             bool               `json:"active"`
	Config             []configEntryInput `json:"config"`
}

type validationRuleInput struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Priority         int      `json:"priority"`
	Active           bool     `json:"active"`
	ShopID           *int64   `json:"shopId"`
	ShopGroupID      *int64   `json:"shopGroupId"`
	ProductIDs       []int64  `json:"productIds"`
	CategoryIDs      []int64  `json:"categoryIds"`
	ZoneIDs          []int64  `json:"zoneIds"`
	CountryIDs       []int64  `json:"countryIds"`
	MinWeight        *float64 `json:"minWeight"`
	MaxWeight        *float64 `json:"maxWeight"`
	AllowCarrierIDs  []int64  `json:"allowCarrierIds"`
	DenyCarrierIDs   []int64  `json:"denyCarrierIds"`
	AddCarrierIDs    []int64  `json:"addCarrierIds"`
	PreferCarrierIDs []int64  `json:"preferCarrierIds"`
}

type infoPackageInput struct {
	ID                 int64   `json:"id"`
	OrderID            int64   `json:"orderId"`
	ShopID             int64   `json:"shopId"`
	ReferenceCarrierID int64   `json:"referenceCarrierId"`
	TypeShipmentID     int64   `json:"typeShipmentId"`
	Quantity           int     `json:"quantity"`
	Weight             float64 `json:"weight"`
	Length             float64 `json:"length"`
	Width              float64 `json:"width"`
	Height             float64 `json:"height"`
	CashOnDelivery     string  `json:"cashOnDelivery"`
	HourFrom           string  `json:"hourFrom"`
	HourUntil          string  `json:"hourUntil"`
	Return             bool    `json:"return"`
	RCS                string  `json:"rcs"`
	VSEC               string  `json:"vsec"`
	DOrig              string  `json:"dorig"`
}

// decodeInput copies an input object argument into dst. Arguments were
// already checked against the schema.
func decodeInput(args map[string]any, name string, dst any) error {
	raw, err := json.Marshal(args[name])
	if err != nil {
		return fmt.Errorf("argument %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return domain.ErrInvalidConfigurationData.Withf("argument %s: %v", name, err).WithCause(err)
	}
	return nil
}

func configEntriesFromInput(in []configEntryInput) domain.ConfigEntries {
	if len(in) == 0 {
		return nil
	}
	out := make(domain.ConfigEntries, len(in))
	for i, e := range in {
		out[i] = domain.ConfigEntry{Key: e.Key, Value: e.Value, Required: e.Required}
	}
	return out
}

// nullIfNotFound turns a missing entity into a GraphQL null.
func nullIfNotFound(err error) error {
	if kind, _ := domain.KindOf(err); kind == domain.KindNotFound {
		return nil
	}
	return err
}

func (r *Resolver) carrier(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	c, err := r.Catalog.Carrier(ctx, id)
	if err != nil {
		return nil, nullIfNotFound(err)
	}
	return carrierToGraphQL(c), nil
}

func (r *Resolver) configurationEntry(ctx context.Context, args map[string]any) (any, error) {
	carrierID, err := requiredInt64(args, "carrierId")
	if err != nil {
		return nil, err
	}
	entry, err := r.Catalog.ConfigurationEntry(ctx, carrierID, stringArg(args, "key"))
	if err != nil {
		return nil, err
	}
	return configEntryToGraphQL(entry), nil
}

func (r *Resolver) typeShipments(ctx context.Context, args map[string]any) (any, error) {
	carrierID, err := requiredInt64(args, "carrierId")
	if err != nil {
		return nil, err
	}
	ts, err := r.Catalog.TypeShipments(ctx, carrierID)
	if err != nil {
		return nil, err
	}
	out := make([]object, len(ts))
	for i := range ts {
		out[i] = typeShipmentToGraphQL(&ts[i])
	}
	return out, nil
}

func (r *Resolver) typeShipmentConfigurationEntry(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "typeShipmentId")
	if err != nil {
		return nil, err
	}
	entry, err := r.Catalog.TypeShipmentConfigurationEntry(ctx, id, stringArg(args, "key"))
	if err != nil {
		return nil, err
	}
	return configEntryToGraphQL(entry), nil
}

func (r *Resolver) validationRule(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	rule, err := r.Catalog.Rule(ctx, id)
	if err != nil {
		return nil, nullIfNotFound(err)
	}
	return ruleToGraphQL(rule), nil
}

func (r *Resolver) infoPackage(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	p, err := r.Catalog.InfoPackage(ctx, id)
	if err != nil {
		return nil, nullIfNotFound(err)
	}
	return infoPackageToGraphQL(p), nil
}

func (r *Resolver) saveCarrier(ctx context.Context, args map[string]any) (any, error) {
	var in carrierInput
	if err := decodeInput(args, "input", &in); err != nil {
		return nil, err
	}
	c := &domain.Carrier{
		ID:        in.ID,
		Name:      in.Name,
		ShortName: in.ShortName,
		Icon:      in.Icon,
		ShopIDs:   in.ShopIDs,
		Active:    in.Active,
		Config:    configEntriesFromInput(in.Config),
	}
	if err := r.Catalog.SaveCarrier(ctx, c); err != nil {
		return nil, err
	}
	return carrierToGraphQL(c), nil
}

func (r *Resolver) removeCarrier(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.Catalog.RemoveCarrier(ctx, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolver) saveTypeShipment(ctx context.Context, args map[string]any) (any, error) {
	var in typeShipmentInput
	if err := decodeInput(args, "input", &in); err != nil {
		return nil, err
	}
	t := &domain.TypeShipment{
		ID:                 in.ID,
		CarrierID:          in.CarrierID,
		Name:               in.Name,
		BusinessCode:       in.BusinessCode,
		ReferenceCarrierID: in.ReferenceCarrierID,
		Active:             in.Active,
		Config:             configEntriesFromInput(in.Config),
	}
	if err := r.Catalog.SaveTypeShipment(ctx, t); err != nil {
		return nil, err
	}
	return typeShipmentToGraphQL(t), nil
}

func (r *Resolver) removeTypeShipment(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.Catalog.RemoveTypeShipment(ctx, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolver) saveValidationRule(ctx context.Context, args map[string]any) (any, error) {
	var in validationRuleInput
	if err := decodeInput(args, "input", &in); err != nil {
		return nil, err
	}
	rule := &domain.ValidationRule{Rule: rules.Rule{
		ID:       in.ID,
		Name:     in.Name,
		Priority: in.Priority,
		Active:   in.Active,
		Scope:    rules.Scope{ShopID: in.ShopID, ShopGroupID: in.ShopGroupID},
		Conditions: rules.Conditions{
			ProductIDs:  in.ProductIDs,
			CategoryIDs: in.CategoryIDs,
			ZoneIDs:     in.ZoneIDs,
			CountryIDs:  in.CountryIDs,
			MinWeight:   in.MinWeight,
			MaxWeight:   in.MaxWeight,
		},
		Effects: rules.Effects{
			AllowIDs:  in.AllowCarrierIDs,
			DenyIDs:   in.DenyCarrierIDs,
			AddIDs:    in.AddCarrierIDs,
			PreferIDs: in.PreferCarrierIDs,
		},
	}}
	if err := r.Catalog.SaveRule(ctx, rule); err != nil {
		return nil, err
	}
	return ruleToGraphQL(rule), nil
}

func (r *Resolver) removeValidationRule(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.Catalog.RemoveRule(ctx, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolver) saveInfoPackage(ctx context.Context, args map[string]any) (any, error) {
	var in infoPackageInput
	if err := decodeInput(args, "input", &in); err != nil {
		return nil, err
	}
	cod := decimal.Zero
	if in.CashOnDelivery != "" {
		var err error
		if cod, err = decimal.NewFromString(in.CashOnDelivery); err != nil {
			return nil, domain.ErrInvalidConfigurationData.WithFields([]domain.FieldError{
				{Field: "cash_on_delivery", Rule: "decimal"},
			})
		}
	}
	p := &domain.InfoPackage{
		ID:                 in.ID,
		OrderID:            in.OrderID,
		ShopID:             in.ShopID,
		ReferenceCarrierID: in.ReferenceCarrierID,
		TypeShipmentID:     in.TypeShipmentID,
		Quantity:           in.Quantity,
		Weight:             in.Weight,
		Length:             in.Length,
		Width:              in.Width,
		Height:             in.Height,
		CashOnDelivery:     cod,
		HourFrom:           in.HourFrom,
		HourUntil:          in.HourUntil,
		Return:             in.Return,
		RCS:                in.RCS,
		VSEC:               in.VSEC,
		DOrig:              in.DOrig,
	}
	if err := r.Catalog.SaveInfoPackage(ctx, p); err != nil {
		return nil, err
	}
	return infoPackageToGraphQL(p), nil
}
