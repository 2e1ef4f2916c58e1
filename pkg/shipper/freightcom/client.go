// Package freightcom provides integration with the Freightcom shipping API.
package freightcom

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierCode = "freightcom"

// Config holds Freightcom configuration.
type Config struct {
	APIKey          string
	BaseURL         string
	PaymentMethodID string // Default when the carrier configuration has none
	UseMock         bool   // When true, uses mock API client
	Timeout         time.Duration
}

// Client is the Freightcom adapter.
// It delegates API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

var _ shipper.Adapter = (*Client)(nil)

// New creates a new Freightcom client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Freightcom client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(carrierCode)
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Code returns the carrier code.
func (c *Client) Code() string {
	return carrierCode
}

// BuildRequest encodes the shipment as Freightcom JSON. The product code of the
// type shipment is the Freightcom service id.
func (c *Client) BuildRequest(p *shipper.ShipmentPayload, cfg shipper.Configuration) (*shipper.ProviderRequest, error) {
	if p.ProductCode == "" {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "missing service id").
			WithCause(shipper.ErrInvalidPackage)
	}
	if p.Parcel.Weight <= 0 {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "parcel weight must be positive").
			WithCause(shipper.ErrInvalidPackage)
	}
	if p.Recipient.City == "" || p.Recipient.CountryCode == "" {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "incomplete recipient address").
			WithCause(shipper.ErrInvalidAddress)
	}

	qty := p.Parcel.Quantity
	if qty < 1 {
		qty = 1
	}

	req := ShipmentRequest{
		UniqueID:        uuid.New().String(),
		PaymentMethodID: cfg.Get("payment_method_id", c.config.PaymentMethodID),
		ServiceID:       p.ProductCode,
		Reference:       p.OrderReference,
		LabelFormat:     strings.ToLower(cfg.Get(shipper.KeyLabelFormat, string(shipper.LabelPDF))),
		ReturnLabel:     p.Return,
		Details: Details{
			Origin:      locationOf(p.Sender),
			Destination: locationOf(p.Recipient),
			Packaging: PackagingInfo{
				Type: cfg.Get("packaging_type", "package"),
				Packages: []Package{{
					Length:   p.Parcel.Length,
					Width:    p.Parcel.Width,
					Height:   p.Parcel.Height,
					Weight:   p.Parcel.Weight,
					Quantity: qty,
				}},
			},
		},
	}
	if p.HasCashOnDelivery() {
		req.COD = &CashOnDelivery{
			Amount:   p.CashOnDelivery.StringFixed(2),
			Currency: cfg.Get(shipper.KeyCurrency, "CAD"),
		}
	}
	if p.HourFrom != "" && p.HourUntil != "" {
		req.PickupDetails = &PickupDetails{ReadyTime: p.HourFrom, ClosingTime: p.HourUntil}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "failed to marshal request").WithCause(err)
	}

	return &shipper.ProviderRequest{
		Carrier:  carrierCode,
		Endpoint: "/shipment",
		Body:     body,
		Config:   cfg,
	}, nil
}

// Send books the shipment. Labels come back inline.
func (c *Client) Send(ctx context.Context, req *shipper.ProviderRequest) (*shipper.ProviderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "freightcom.Send")
	defer span.End()

	log := c.logger.Ctx(ctx)
	log.Info("Creating Freightcom shipment")

	result, raw, err := c.apiClient.CreateShipment(ctx, req.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("Freightcom API error", zap.Error(err))
		var resp *shipper.ProviderResponse
		if raw != nil {
			resp = &shipper.ProviderResponse{Carrier: carrierCode, Body: raw}
		}
		return resp, wrapError(err)
	}

	span.SetAttributes(
		attribute.String("shipment_id", result.ID),
		attribute.Bool("previously_created", result.PreviouslyCreated),
	)

	number := result.ID
	if len(result.TrackingNumbers) > 0 {
		number = result.TrackingNumbers[0]
	}

	docs := make([]shipper.Document, 0, len(result.Labels))
	for _, l := range result.Labels {
		typ := shipper.LabelParcel
		if l.Type == "return" {
			typ = shipper.LabelReturn
		}
		docs = append(docs, shipper.Document{
			TrackerCode: l.TrackingNumber,
			Type:        typ,
			Format:      shipper.LabelFormat(strings.ToLower(l.Format)),
			Encoded:     l.Data,
		})
	}

	log.Info("Freightcom shipment created",
		zap.String("shipment_id", result.ID),
		zap.String("tracking_number", number),
		zap.Bool("previously_created", result.PreviouslyCreated),
	)

	return &shipper.ProviderResponse{
		Carrier:        carrierCode,
		ShipmentNumber: number,
		StatusCode:     200,
		Body:           raw,
		Documents:      docs,
	}, nil
}

// ParseLabels decodes the inline base64 labels.
func (c *Client) ParseLabels(resp *shipper.ProviderResponse) ([]shipper.LabelArtifact, error) {
	return shipper.DecodeDocuments(carrierCode, resp.Documents)
}

func locationOf(a shipper.Address) Location {
	return Location{
		Name:       a.Name,
		Company:    a.Company,
		Address1:   a.Line1,
		Address2:   a.Line2,
		City:       a.City,
		Province:   a.ProvinceCode,
		PostalCode: a.PostalCode,
		Country:    a.CountryCode,
		Phone:      a.Phone,
		Email:      a.Email,
	}
}

func wrapError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		e := shipper.StatusError(carrierCode, apiErr.StatusCode, apiErr.Error())
		if e.Cause == nil {
			e.WithCause(apiErr)
		}
		return e
	}
	return shipper.TransportError(carrierCode, err)
}
