// Package shipment turns info packages into booked shipments with labels.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/internal/events"
	"github.com/tournevent/carrierhub/internal/labels"
	"github.com/tournevent/carrierhub/internal/telemetry"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const defaultSendTimeout = 30 * time.Second

// Config holds generator settings.
type Config struct {
	// Defaults is the lowest configuration layer, below carrier and type
	// shipment entries.
	Defaults shipper.Configuration
	// SendTimeout bounds a carrier call when send_timeout is not configured.
	SendTimeout time.Duration
}

// Result is a generated shipment.
type Result struct {
	Shipment     *domain.Shipment
	Labels       []domain.Label
	Carrier      *domain.Carrier
	TypeShipment *domain.TypeShipment
}

// Generator books shipments. It is safe for concurrent use.
type Generator struct {
	store     domain.Store
	orders    domain.OrderProvider
	registry  *shipper.Registry
	labels    *labels.Store
	publisher events.Publisher
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
	tracer    trace.Tracer
	cfg       Config
	now       func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithPublisher sets the event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(g *Generator) { g.publisher = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Generator) { g.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(g *Generator) { g.tracer = t }
}

// New creates a generator.
func New(store domain.Store, orders domain.OrderProvider, registry *shipper.Registry, logger *otelzap.Logger, cfg Config, opts ...Option) *Generator {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	g := &Generator{
		store:     store,
		orders:    orders,
		registry:  registry,
		labels:    labels.New(store.Labels()),
		publisher: events.Nop{},
		logger:    logger,
		tracer:    noop.NewTracerProvider().Tracer("shipment"),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// exchange holds the raw bodies sent to and received from a carrier.
type exchange struct {
	request  []byte
	response []byte
}

// adapterFailure marks an error raised by the carrier adapter, together with
// whatever was exchanged before it happened.
type adapterFailure struct {
	err      error
	request  []byte
	response []byte
}

func (f *adapterFailure) Error() string { return f.err.Error() }
func (f *adapterFailure) Unwrap() error { return f.err }

// Generate books the info package with its carrier and stores the labels.
// shopID 0 matches any shop.
func (g *Generator) Generate(ctx context.Context, infoPackageID, shopID int64) (*Result, error) {
	ctx, span := g.tracer.Start(ctx, "shipment.Generate", trace.WithAttributes(
		attribute.Int64("info_package.id", infoPackageID),
		attribute.Int64("shop.id", shopID),
	))
	defer span.End()
	log := g.logger.Ctx(ctx)

	p, err := g.prepare(ctx, infoPackageID, shopID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Info("Shipment preconditions failed", zap.Int64("info_package_id", infoPackageID), zap.Error(err))
		return nil, err
	}
	code := p.carrier.ShortName
	span.SetAttributes(attribute.String("carrier", code), attribute.String("product", p.typeShipment.BusinessCode))

	payload := payloadFor(p)
	timeout := p.config.Duration(shipper.KeySendTimeout, g.cfg.SendTimeout)
	correlationID := uuid.NewString()

	var (
		result *Result
		booked *exchange
	)
	err = g.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		if _, err := tx.InfoPackages().Lock(ctx, p.pkg.ID); err != nil {
			return err
		}
		if err := ensureNoActiveShipment(ctx, tx, p.pkg.ID); err != nil {
			return err
		}

		req, resp, artifacts, err := g.book(ctx, p.adapter, payload, p.config, timeout)
		if err != nil {
			return err
		}
		booked = &exchange{request: req.Body, response: resp.Body}

		sh := &domain.Shipment{
			OrderID:        p.order.ID,
			OrderReference: p.order.Reference,
			ShipmentNumber: resp.ShipmentNumber,
			InfoPackageID:  p.pkg.ID,
			CompanyID:      p.carrier.ID,
			TypeShipmentID: p.typeShipment.ID,
			ShopID:         p.pkg.ShopID,
			Product:        p.typeShipment.BusinessCode,
			Request:        req.Body,
			Response:       resp.Body,
		}
		if err := tx.Shipments().Create(ctx, sh); err != nil {
			return err
		}

		ls := labels.Encode(artifacts)
		if err := labels.Save(ctx, tx.Labels(), sh.ID, ls); err != nil {
			return err
		}

		if err := tx.Logs().Append(ctx, &domain.LogEntry{
			Name:          domain.LogShipmentCreated,
			OrderID:       p.order.ID,
			InfoPackageID: p.pkg.ID,
			Carrier:       code,
			Request:       req.Body,
			Response:      resp.Body,
			CorrelationID: correlationID,
		}); err != nil {
			return err
		}

		result = &Result{Shipment: sh, Labels: ls, Carrier: p.carrier, TypeShipment: p.typeShipment}
		return nil
	})
	if err != nil {
		err = g.failed(ctx, p, correlationID, booked, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	g.metrics.RecordShipment("generate", code, "created")
	log.Info("Shipment generated",
		zap.Int64("shipment_id", result.Shipment.ID),
		zap.Int64("info_package_id", p.pkg.ID),
		zap.String("carrier", code),
		zap.String("shipment_number", result.Shipment.ShipmentNumber),
		zap.Int("labels", len(result.Labels)),
	)
	g.publish(ctx, events.Event{
		Type:           events.ShipmentCreated,
		ShipmentID:     result.Shipment.ID,
		ShipmentNumber: result.Shipment.ShipmentNumber,
		InfoPackageID:  p.pkg.ID,
		OrderID:        p.order.ID,
		ShopID:         p.pkg.ShopID,
		Carrier:        code,
		Labels:         len(result.Labels),
	})
	return result, nil
}

// book runs the adapter: build, send within timeout, parse.
func (g *Generator) book(ctx context.Context, a shipper.Adapter, payload *shipper.ShipmentPayload, cfg shipper.Configuration, timeout time.Duration) (*shipper.ProviderRequest, *shipper.ProviderResponse, []shipper.LabelArtifact, error) {
	req, err := a.BuildRequest(payload, cfg)
	if err != nil {
		return nil, nil, nil, &adapterFailure{err: err}
	}

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	start := time.Now()
	resp, err := a.Send(sendCtx, req)
	cancel()
	g.metrics.ObserveCarrier(a.Code(), time.Since(start).Seconds())
	if err != nil {
		f := &adapterFailure{err: err, request: req.Body}
		if resp != nil {
			f.response = resp.Body
		}
		return req, resp, nil, f
	}

	artifacts, err := a.ParseLabels(resp)
	if err == nil && len(artifacts) == 0 {
		err = shipper.NewShipperError(a.Code(), shipper.CodeBadResponse, "response carries no label").WithCause(shipper.ErrNoLabels)
	}
	if err != nil {
		return req, resp, nil, &adapterFailure{err: err, request: req.Body, response: resp.Body}
	}
	return req, resp, artifacts, nil
}

// failed turns a rolled back transaction into the caller's error. Adapter
// failures, and any failure after the carrier accepted the booking, are logged
// outside the transaction.
func (g *Generator) failed(ctx context.Context, p *plan, correlationID string, booked *exchange, err error) error {
	log := g.logger.Ctx(ctx)
	code := p.carrier.ShortName

	var af *adapterFailure
	if errors.As(err, &af) {
		retryable := shipper.IsRetryable(af.err)
		outcome := "rejected"
		if retryable {
			outcome = "transient"
		}
		var se *shipper.ShipperError
		if errors.As(af.err, &se) {
			g.metrics.RecordError(code, se.Code)
		} else {
			g.metrics.RecordError(code, "UNKNOWN")
		}
		g.metrics.RecordShipment("generate", code, outcome)
		g.appendFailure(ctx, p, correlationID, &exchange{request: af.request, response: af.response}, af.err)

		log.Warn("Shipment generation failed",
			zap.Int64("info_package_id", p.pkg.ID),
			zap.String("carrier", code),
			zap.Bool("retryable", retryable),
			zap.Error(af.err),
		)
		return domain.ErrShipmentGenerationFailed.
			Withf("carrier %s failed for info package %d", code, p.pkg.ID).
			WithCause(af.err).
			WithTransient(retryable)
	}

	if booked != nil {
		// The carrier holds a booking that was not stored.
		g.appendFailure(ctx, p, correlationID, booked, err)
		log.Error("Shipment booked but not stored",
			zap.Int64("info_package_id", p.pkg.ID),
			zap.String("carrier", code),
			zap.Error(err),
		)
	}

	if errors.Is(err, domain.ErrConcurrentUpdate) {
		log.Warn("Shipment transaction conflicted", zap.Int64("info_package_id", p.pkg.ID), zap.Error(err))
		if cerr := ensureNoActiveShipment(ctx, g.store, p.pkg.ID); cerr != nil {
			return cerr
		}
		g.metrics.RecordShipment("generate", code, "conflict")
		return err
	}

	if errors.Is(err, domain.ErrShipmentAlreadyExists) {
		g.metrics.RecordShipment("generate", code, "exists")
		return err
	}
	g.metrics.RecordShipment("generate", code, "error")
	return fmt.Errorf("generate shipment for info package %d: %w", p.pkg.ID, err)
}

// appendFailure records a failed generation. The caller's context may be the
// one that expired.
func (g *Generator) appendFailure(ctx context.Context, p *plan, correlationID string, x *exchange, cause error) {
	entry := &domain.LogEntry{
		Name:          domain.LogShipmentFailed,
		OrderID:       p.order.ID,
		InfoPackageID: p.pkg.ID,
		Carrier:       p.carrier.ShortName,
		Request:       x.request,
		Response:      x.response,
		Error:         cause.Error(),
		CorrelationID: correlationID,
	}
	if err := g.store.Logs().Append(context.WithoutCancel(ctx), entry); err != nil {
		g.logger.Ctx(ctx).Error("Failed to append shipment failure log", zap.Int64("info_package_id", p.pkg.ID), zap.Error(err))
	}
}

// DeleteShipment soft deletes a shipment and its labels. The info package can
// be generated again afterwards.
func (g *Generator) DeleteShipment(ctx context.Context, shipmentID int64) error {
	ctx, span := g.tracer.Start(ctx, "shipment.Delete", trace.WithAttributes(attribute.Int64("shipment.id", shipmentID)))
	defer span.End()

	var (
		sh   *domain.Shipment
		code string
	)
	err := g.store.WithinTx(ctx, func(ctx context.Context, tx domain.Store) error {
		var err error
		sh, err = tx.Shipments().Get(ctx, shipmentID)
		if err != nil {
			return err
		}
		if c, err := tx.Carriers().Get(ctx, sh.CompanyID); err == nil {
			code = c.ShortName
		}
		if err := tx.Labels().RemoveByShipment(ctx, shipmentID); err != nil {
			return err
		}
		if err := tx.Shipments().Remove(ctx, shipmentID); err != nil {
			return err
		}
		return tx.Logs().Append(ctx, &domain.LogEntry{
			Name:          domain.LogShipmentDeleted,
			OrderID:       sh.OrderID,
			InfoPackageID: sh.InfoPackageID,
			Carrier:       code,
			CorrelationID: uuid.NewString(),
		})
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	g.metrics.RecordShipment("delete", code, "deleted")
	g.logger.Ctx(ctx).Info("Shipment deleted",
		zap.Int64("shipment_id", shipmentID),
		zap.Int64("info_package_id", sh.InfoPackageID),
	)
	g.publish(ctx, events.Event{
		Type:           events.ShipmentDeleted,
		ShipmentID:     sh.ID,
		ShipmentNumber: sh.ShipmentNumber,
		InfoPackageID:  sh.InfoPackageID,
		OrderID:        sh.OrderID,
		ShopID:         sh.ShopID,
		Carrier:        code,
	})
	return nil
}

// GetLabels returns the labels of an active shipment.
func (g *Generator) GetLabels(ctx context.Context, shipmentID int64) ([]domain.Label, error) {
	if _, err := g.store.Shipments().Get(ctx, shipmentID); err != nil {
		return nil, err
	}
	return g.labels.Labels(ctx, shipmentID)
}

// Shipment returns an active shipment.
func (g *Generator) Shipment(ctx context.Context, shipmentID int64) (*domain.Shipment, error) {
	return g.store.Shipments().Get(ctx, shipmentID)
}

func (g *Generator) publish(ctx context.Context, e events.Event) {
	e.OccurredAt = g.now().UTC()
	if err := g.publisher.Publish(ctx, e); err != nil {
		g.logger.Ctx(ctx).Warn("Failed to publish shipment event",
			zap.String("type", e.Type),
			zap.Int64("shipment_id", e.ShipmentID),
			zap.Error(err),
		)
	}
}
