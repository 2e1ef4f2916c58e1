package graphql

import (
	"context"

	"github.com/tournevent/carrierhub/internal/catalog"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/labels"
	"github.com/tournevent/carrierhub/internal/selection"
	"github.com/tournevent/carrierhub/internal/shipment"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Resolver is the root resolver for the GraphQL schema.
// It holds dependencies needed by all resolvers.
type Resolver struct {
	Generator *shipment.Generator
	Selection *selection.Service
	Catalog   *catalog.Service
	Labels    *labels.Store
	Logger    *otelzap.Logger
	Metrics   *telemetry.Metrics

	query    map[string]fieldFunc
	mutation map[string]fieldFunc
}

type fieldFunc func(ctx context.Context, args map[string]any) (any, error)

// NewResolver creates a new resolver with the given dependencies.
func NewResolver(
	generator *shipment.Generator,
	selector *selection.Service,
	cat *catalog.Service,
	labelStore *labels.Store,
	logger *otelzap.Logger,
	metrics *telemetry.Metrics,
) *Resolver {
	r := &Resolver{
		Generator: generator,
		Selection: selector,
		Catalog:   cat,
		Labels:    labelStore,
		Logger:    logger,
		Metrics:   metrics,
	}
	r.query = map[string]fieldFunc{
		"health":         r.health,
		"carriers":       r.carriers,
		"selectCarriers": r.selectCarriers,
		"shipment":       r.shipment,
		"labels":         r.labels,
		"logEntries":     r.logEntries,

		"carrier":                        r.carrier,
		"configurationEntry":             r.configurationEntry,
		"typeShipments":                  r.typeShipments,
		"typeShipmentConfigurationEntry": r.typeShipmentConfigurationEntry,
		"validationRule":                 r.validationRule,
		"infoPackage":                    r.infoPackage,
	}
	r.mutation = map[string]fieldFunc{
		"generateShipment": r.generateShipment,
		"deleteShipment":   r.deleteShipment,
		"markLabelPrinted": r.markLabelPrinted,

		"saveCarrier":          r.saveCarrier,
		"removeCarrier":        r.removeCarrier,
		"saveTypeShipment":     r.saveTypeShipment,
		"removeTypeShipment":   r.removeTypeShipment,
		"saveValidationRule":   r.saveValidationRule,
		"removeValidationRule": r.removeValidationRule,
		"saveInfoPackage":      r.saveInfoPackage,
	}
	return r
}

func (r *Resolver) health(context.Context, map[string]any) (any, error) {
	return true, nil
}

func (r *Resolver) carriers(ctx context.Context, args map[string]any) (any, error) {
	shopID, err := optionalInt64(args, "shopId")
	if err != nil {
		return nil, err
	}
	cs, err := r.Catalog.Carriers(ctx, shopID)
	if err != nil {
		return nil, err
	}
	return carriersToGraphQL(cs), nil
}

func (r *Resolver) selectCarriers(ctx context.Context, args map[string]any) (any, error) {
	orderID, err := requiredInt64(args, "orderId")
	if err != nil {
		return nil, err
	}
	cs, err := r.Selection.SelectForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return carriersToGraphQL(cs), nil
}

func (r *Resolver) shipment(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	s, err := r.Generator.Shipment(ctx, id)
	if err != nil {
		return nil, nullIfNotFound(err)
	}
	return shipmentToGraphQL(s, r.shipmentLabels(s.ID)), nil
}

func (r *Resolver) labels(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "shipmentId")
	if err != nil {
		return nil, err
	}
	return r.shipmentLabels(id)(ctx)
}

// shipmentLabels loads and verifies the labels of a shipment on demand.
func (r *Resolver) shipmentLabels(shipmentID int64) lazy {
	return func(ctx context.Context) (any, error) {
		ls, err := r.Generator.GetLabels(ctx, shipmentID)
		if err != nil {
			return nil, err
		}
		return labelsToGraphQL(ls), nil
	}
}

func (r *Resolver) logEntries(ctx context.Context, args map[string]any) (any, error) {
	var f domain.LogFilter
	var err error
	if f.OrderID, err = optionalInt64(args, "orderId"); err != nil {
		return nil, err
	}
	if f.InfoPackageID, err = optionalInt64(args, "infoPackageId"); err != nil {
		return nil, err
	}
	limit, err := optionalInt64(args, "limit")
	if err != nil {
		return nil, err
	}
	f.Limit = int(limit)
	f.Name = stringArg(args, "name")

	entries, err := r.Catalog.LogEntries(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]object, len(entries))
	for i := range entries {
		out[i] = logEntryToGraphQL(&entries[i])
	}
	return out, nil
}

func (r *Resolver) generateShipment(ctx context.Context, args map[string]any) (any, error) {
	infoPackageID, err := requiredInt64(args, "infoPackageId")
	if err != nil {
		return nil, err
	}
	shopID, err := optionalInt64(args, "shopId")
	if err != nil {
		return nil, err
	}
	res, err := r.Generator.Generate(ctx, infoPackageID, shopID)
	if err != nil {
		r.Logger.Ctx(ctx).Warn("Shipment generation rejected",
			zap.Int64("info_package_id", infoPackageID),
			zap.Error(err),
		)
		return nil, err
	}
	generated := res.Labels
	return shipmentToGraphQL(res.Shipment, func(context.Context) (any, error) {
		return labelsToGraphQL(generated), nil
	}), nil
}

func (r *Resolver) deleteShipment(ctx context.Context, args map[string]any) (any, error) {
	id, err := requiredInt64(args, "id")
	if err != nil {
		return nil, err
	}
	if err := r.Generator.DeleteShipment(ctx, id); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Resolver) markLabelPrinted(ctx context.Context, args map[string]any) (any, error) {
	shipmentID, err := requiredInt64(args, "shipmentId")
	if err != nil {
		return nil, err
	}
	labelID, err := requiredInt64(args, "labelId")
	if err != nil {
		return nil, err
	}
	if err := r.Labels.MarkPrinted(ctx, shipmentID, labelID); err != nil {
		return nil, err
	}
	return true, nil
}
