// Package selection picks the carriers an order may ship with.
package selection

import (
	"context"

	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"github.com/tournevent/carrierhub/pkg/rules"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Service runs the rule matcher over stored carriers and rules.
type Service struct {
	store   domain.Store
	orders  domain.OrderProvider
	logger  *otelzap.Logger
	metrics *telemetry.Metrics
}

// New creates a selection service. metrics may be nil.
func New(store domain.Store, orders domain.OrderProvider, logger *otelzap.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{store: store, orders: orders, logger: logger, metrics: metrics}
}

// SelectForOrder returns the carriers eligible for the order, preferred
// carriers first.
func (s *Service) SelectForOrder(ctx context.Context, orderID int64) ([]domain.Carrier, error) {
	order, err := s.orders.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}

	carriers, err := s.store.Carriers().List(ctx, order.ShopID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Carrier, len(carriers))
	candidates := make([]int64, 0, len(carriers))
	for _, c := range carriers {
		if !c.Usable(order.ShopID) {
			continue
		}
		byID[c.ID] = c
		candidates = append(candidates, c.ID)
	}

	stored, err := s.store.Rules().ListInScope(ctx, order.ShopID, order.ShopGroupID)
	if err != nil {
		return nil, err
	}
	rs := make([]rules.Rule, len(stored))
	for i, r := range stored {
		rs[i] = r.Rule
	}

	decision := rules.Evaluate(order.Context(), candidates, rs)

	out := make([]domain.Carrier, 0, len(decision.Carriers))
	for _, id := range decision.Carriers {
		out = append(out, byID[id])
	}

	s.metrics.RecordSelection(len(out))
	s.logger.Ctx(ctx).Debug("Carriers selected",
		zap.Int64("order_id", orderID),
		zap.Int64s("candidates", candidates),
		zap.Int64s("matched_rules", decision.Matched),
		zap.Int64s("eligible", decision.Carriers),
	)
	return out, nil
}
