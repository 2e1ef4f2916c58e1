// Package catalog manages carriers, type shipments, validation rules, info
// packages and the audit log.
package catalog

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Service validates input and writes it through the store.
type Service struct {
	store    domain.Store
	logger   *otelzap.Logger
	validate *validator.Validate
}

// New creates a catalog service.
func New(store domain.Store, logger *otelzap.Logger) *Service {
	return &Service{store: store, logger: logger, validate: newValidator()}
}

// ============================================================================
// Carriers
// ============================================================================

// SaveCarrier inserts or updates a carrier. The short name is stored lower case.
func (s *Service) SaveCarrier(ctx context.Context, c *domain.Carrier) error {
	c.ShortName = strings.ToLower(strings.TrimSpace(c.ShortName))
	if err := s.check(c); err != nil {
		return err
	}
	if err := s.store.Carriers().Save(ctx, c); err != nil {
		return err
	}
	s.logger.Ctx(ctx).Info("Carrier saved", zap.Int64("carrier_id", c.ID), zap.String("short_name", c.ShortName))
	return nil
}

// Carrier returns a carrier.
func (s *Service) Carrier(ctx context.Context, id int64) (*domain.Carrier, error) {
	return s.store.Carriers().Get(ctx, id)
}

// Carriers lists the carriers enabled for shopID. Zero lists all.
func (s *Service) Carriers(ctx context.Context, shopID int64) ([]domain.Carrier, error) {
	return s.store.Carriers().List(ctx, shopID)
}

// RemoveCarrier deletes a carrier and its type shipments.
func (s *Service) RemoveCarrier(ctx context.Context, id int64) error {
	var removed int
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.Carriers().Get(ctx, id); err != nil {
			return err
		}
		owned, err := tx.TypeShipments().ListByCarrier(ctx, id)
		if err != nil {
			return err
		}
		for _, t := range owned {
			if err := tx.TypeShipments().Remove(ctx, t.ID); err != nil {
				return err
			}
		}
		removed = len(owned)
		return tx.Carriers().Remove(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Ctx(ctx).Info("Carrier removed", zap.Int64("carrier_id", id), zap.Int("type_shipments", removed))
	return nil
}

// ConfigurationEntry returns one configuration entry of a carrier.
func (s *Service) ConfigurationEntry(ctx context.Context, carrierID int64, key string) (domain.ConfigEntry, error) {
	c, err := s.store.Carriers().Get(ctx, carrierID)
	if err != nil {
		return domain.ConfigEntry{}, err
	}
	entry, ok := c.Config.Lookup(key)
	if !ok {
		return domain.ConfigEntry{}, domain.ErrCarrierConfigurationNotFound.Withf("carrier %d has no configuration %q", carrierID, key)
	}
	return entry, nil
}

// ============================================================================
// Type shipments
// ============================================================================

// SaveTypeShipment inserts or updates a type shipment. An active type
// shipment may not share its reference carrier with another active one.
func (s *Service) SaveTypeShipment(ctx context.Context, t *domain.TypeShipment) error {
	if err := s.check(t); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.Carriers().Get(ctx, t.CarrierID); err != nil {
			return err
		}
		if t.Active {
			mapped, err := tx.TypeShipments().FindByReference(ctx, t.ReferenceCarrierID)
			if err != nil {
				return err
			}
			for _, other := range mapped {
				if other.ID != t.ID && other.Usable() {
					return domain.ErrTypeShipmentCarrierConflict.Withf(
						"reference carrier %d is already mapped by type shipment %d", t.ReferenceCarrierID, other.ID)
				}
			}
		}
		return tx.TypeShipments().Save(ctx, t)
	})
	if err != nil {
		return err
	}
	s.logger.Ctx(ctx).Info("Type shipment saved",
		zap.Int64("type_shipment_id", t.ID),
		zap.Int64("carrier_id", t.CarrierID),
		zap.Int64("reference_carrier_id", t.ReferenceCarrierID),
	)
	return nil
}

// TypeShipment returns a type shipment.
func (s *Service) TypeShipment(ctx context.Context, id int64) (*domain.TypeShipment, error) {
	return s.store.TypeShipments().Get(ctx, id)
}

// TypeShipments lists the type shipments of a carrier.
func (s *Service) TypeShipments(ctx context.Context, carrierID int64) ([]domain.TypeShipment, error) {
	return s.store.TypeShipments().ListByCarrier(ctx, carrierID)
}

// RemoveTypeShipment deletes a type shipment.
func (s *Service) RemoveTypeShipment(ctx context.Context, id int64) error {
	return s.store.TypeShipments().Remove(ctx, id)
}

// TypeShipmentConfigurationEntry returns one configuration entry of a type
// shipment.
func (s *Service) TypeShipmentConfigurationEntry(ctx context.Context, typeShipmentID int64, key string) (domain.ConfigEntry, error) {
	t, err := s.store.TypeShipments().Get(ctx, typeShipmentID)
	if err != nil {
		return domain.ConfigEntry{}, err
	}
	entry, ok := t.Config.Lookup(key)
	if !ok {
		return domain.ConfigEntry{}, domain.ErrCarrierConfigurationNotFound.Withf("type shipment %d has no configuration %q", typeShipmentID, key)
	}
	return entry, nil
}

// ============================================================================
// Validation rules
// ============================================================================

// SaveRule inserts or updates a validation rule.
func (s *Service) SaveRule(ctx context.Context, r *domain.ValidationRule) error {
	if err := s.check(r); err != nil {
		return err
	}
	return s.store.Rules().Save(ctx, r)
}

// Rule returns a validation rule.
func (s *Service) Rule(ctx context.Context, id int64) (*domain.ValidationRule, error) {
	return s.store.Rules().Get(ctx, id)
}

// RemoveRule deletes a validation rule.
func (s *Service) RemoveRule(ctx context.Context, id int64) error {
	return s.store.Rules().Remove(ctx, id)
}

// ============================================================================
// Info packages
// ============================================================================

// SaveInfoPackage inserts or updates the package description of an order.
func (s *Service) SaveInfoPackage(ctx context.Context, p *domain.InfoPackage) error {
	if err := s.check(p); err != nil {
		return err
	}
	return s.store.InfoPackages().Save(ctx, p)
}

// InfoPackage returns an info package.
func (s *Service) InfoPackage(ctx context.Context, id int64) (*domain.InfoPackage, error) {
	return s.store.InfoPackages().Get(ctx, id)
}

// ============================================================================
// Log entries
// ============================================================================

// LogEntry returns one log entry.
func (s *Service) LogEntry(ctx context.Context, id int64) (*domain.LogEntry, error) {
	return s.store.Logs().Get(ctx, id)
}

// LogEntries lists log entries newest first.
func (s *Service) LogEntries(ctx context.Context, f domain.LogFilter) ([]domain.LogEntry, error) {
	return s.store.Logs().List(ctx, f)
}
