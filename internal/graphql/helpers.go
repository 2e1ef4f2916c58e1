package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// object is a resolved GraphQL object. Values of type lazy are resolved only
// when selected.
type object map[string]any

type lazy func(ctx context.Context) (any, error)

func carrierToGraphQL(c *domain.Carrier) object {
	var icon any
	if c.Icon != "" {
		icon = c.Icon
	}
	shopIDs := c.ShopIDs
	if shopIDs == nil {
		shopIDs = []int64{}
	}
	return object{
		"__typename": "Carrier",
		"id":         c.ID,
		"name":       c.Name,
		"shortName":  c.ShortName,
		"icon":       icon,
		"active":     c.Active,
		"shopIds":    shopIDs,
	}
}

func carriersToGraphQL(cs []domain.Carrier) []object {
	out := make([]object, len(cs))
	for i := range cs {
		out[i] = carrierToGraphQL(&cs[i])
	}
	return out
}

func shipmentToGraphQL(s *domain.Shipment, labels lazy) object {
	return object{
		"__typename":     "Shipment",
		"id":             s.ID,
		"orderId":        s.OrderID,
		"orderReference": s.OrderReference,
		"shipmentNumber": s.ShipmentNumber,
		"infoPackageId":  s.InfoPackageID,
		"carrierId":      s.CompanyID,
		"typeShipmentId": s.TypeShipmentID,
		"product":        s.Product,
		"createdAt":      s.CreatedAt.UTC().Format(time.RFC3339),
		"labels":         labels,
	}
}

func labelToGraphQL(l *domain.Label) object {
	return object{
		"__typename":  "Label",
		"id":          l.ID,
		"shipmentId":  l.ShipmentID,
		"trackerCode": l.TrackerCode,
		"type":        string(l.Type),
		"format":      string(l.Format),
		"printed":     l.Printed,
		"url":         LabelURL(l.ShipmentID, l.ID),
	}
}

func labelsToGraphQL(ls []domain.Label) []object {
	out := make([]object, len(ls))
	for i := range ls {
		out[i] = labelToGraphQL(&ls[i])
	}
	return out
}

func logEntryToGraphQL(e *domain.LogEntry) object {
	var msg any
	if e.Error != "" {
		msg = e.Error
	}
	return object{
		"__typename":    "LogEntry",
		"id":            e.ID,
		"name":          e.Name,
		"orderId":       e.OrderID,
		"infoPackageId": e.InfoPackageID,
		"carrier":       e.Carrier,
		"error":         msg,
		"correlationId": e.CorrelationID,
		"createdAt":     e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func configEntriesToGraphQL(entries domain.ConfigEntries) []object {
	out := make([]object, len(entries))
	for i, e := range entries {
		out[i] = configEntryToGraphQL(e)
	}
	return out
}

func configEntryToGraphQL(e domain.ConfigEntry) object {
	return object{
		"__typename": "ConfigEntry",
		"key":        e.Key,
		"value":      e.Value,
		"required":   e.Required,
	}
}

func typeShipmentToGraphQL(t *domain.TypeShipment) object {
	return object{
		"__typename":         "TypeShipment",
		"id":                 t.ID,
		"carrierId":          t.CarrierID,
		"name":               t.Name,
		"businessCode":       t.BusinessCode,
		"referenceCarrierId": t.ReferenceCarrierID,
		"active":             t.Active,
		"config":             configEntriesToGraphQL(t.Config),
	}
}

func ruleToGraphQL(r *domain.ValidationRule) object {
	return object{
		"__typename":       "ValidationRule",
		"id":               r.ID,
		"name":             r.Name,
		"priority":         r.Priority,
		"active":           r.Active,
		"shopId":           optional(r.Scope.ShopID),
		"shopGroupId":      optional(r.Scope.ShopGroupID),
		"productIds":       idList(r.Conditions.ProductIDs),
		"categoryIds":      idList(r.Conditions.CategoryIDs),
		"zoneIds":          idList(r.Conditions.ZoneIDs),
		"countryIds":       idList(r.Conditions.CountryIDs),
		"minWeight":        optional(r.Conditions.MinWeight),
		"maxWeight":        optional(r.Conditions.MaxWeight),
		"allowCarrierIds":  idList(r.Effects.AllowIDs),
		"denyCarrierIds":   idList(r.Effects.DenyIDs),
		"addCarrierIds":    idList(r.Effects.AddIDs),
		"preferCarrierIds": idList(r.Effects.PreferIDs),
	}
}

func infoPackageToGraphQL(p *domain.InfoPackage) object {
	var typeShipmentID any
	if p.TypeShipmentID != 0 {
		typeShipmentID = p.TypeShipmentID
	}
	return object{
		"__typename":         "InfoPackage",
		"id":                 p.ID,
		"orderId":            p.OrderID,
		"shopId":             p.ShopID,
		"referenceCarrierId": p.ReferenceCarrierID,
		"typeShipmentId":     typeShipmentID,
		"quantity":           p.Quantity,
		"weight":             p.Weight,
		"cashOnDelivery":     p.CashOnDelivery.StringFixed(2),
		"return":             p.Return,
	}
}

func idList(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// optional dereferences p, mapping nil to a GraphQL null.
func optional[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

// LabelURL is the download route of a label.
func LabelURL(shipmentID, labelID int64) string {
	return fmt.Sprintf("/shipments/%d/labels/%d", shipmentID, labelID)
}

// errorToGraphQL converts a resolver error, exposing the domain code.
func errorToGraphQL(err error, path ast.Path) *gqlerror.Error {
	gerr := &gqlerror.Error{Err: err, Message: err.Error(), Path: path}
	var derr *domain.Error
	if errors.As(err, &derr) {
		gerr.Extensions = map[string]any{
			"code":      derr.Code,
			"kind":      string(derr.Kind),
			"transient": derr.Transient,
		}
		if len(derr.Fields) > 0 {
			gerr.Extensions["fields"] = derr.Fields
		}
	} else {
		gerr.Message = "internal error"
		gerr.Extensions = map[string]any{"code": "INTERNAL"}
	}
	return gerr
}

// int64Arg reads an integer argument. Variables decoded from JSON arrive as
// float64 or json.Number.
func int64Arg(args map[string]any, name string) (int64, bool, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), true, nil
	case int32:
		return int64(n), true, nil
	case int64:
		return n, true, nil
	case float64:
		if n != float64(int64(n)) {
			return 0, false, fmt.Errorf("argument %s: %v is not an integer", name, n)
		}
		return int64(n), true, nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false, fmt.Errorf("argument %s: %w", name, err)
		}
		return i, true, nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("argument %s: %w", name, err)
		}
		return i, true, nil
	default:
		return 0, false, fmt.Errorf("argument %s: unsupported type %T", name, v)
	}
}

func requiredInt64(args map[string]any, name string) (int64, error) {
	v, ok, err := int64Arg(args, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("argument %s is required", name)
	}
	return v, nil
}

func optionalInt64(args map[string]any, name string) (int64, error) {
	v, _, err := int64Arg(args, name)
	return v, err
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}
