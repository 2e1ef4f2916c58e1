// Package canadapost provides integration with the Canada Post shipping API.
package canadapost

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const carrierCode = "canadapost"

// Config holds Canada Post configuration.
type Config struct {
	APIKey    string
	APISecret string
	AccountID string
	BaseURL   string
	UseMock   bool
	Timeout   time.Duration
}

// Client is the Canada Post adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

var _ shipper.Adapter = (*Client)(nil)

// New creates a new Canada Post client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			APISecret: cfg.APISecret,
			Timeout:   cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Canada Post client with a custom API client.
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

// BuildRequest renders the shipment-v8 XML document.
func (c *Client) BuildRequest(p *shipper.ShipmentPayload, cfg shipper.Configuration) (*shipper.ProviderRequest, error) {
	if p.ProductCode == "" {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "missing service code").
			WithCause(shipper.ErrInvalidPackage)
	}
	if p.Parcel.Weight <= 0 {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "parcel weight must be positive").
			WithCause(shipper.ErrInvalidPackage)
	}
	if p.Recipient.Line1 == "" || p.Recipient.PostalCode == "" {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "incomplete recipient address").
			WithCause(shipper.ErrInvalidAddress)
	}

	account := cfg.Get(shipper.KeyAccount, c.config.AccountID)
	encoding := "PDF"
	if shipper.LabelFormat(cfg.Get(shipper.KeyLabelFormat, "")) == shipper.LabelZPL {
		encoding = "ZPL"
	}

	doc := shipment{
		Xmlns:              shipmentNamespace,
		GroupID:            cfg.Get("group_id", time.Now().Format("20060102")),
		CpcPickupIndicator: true,
		RequestedShipping:  normalizePostalCode(p.Sender.PostalCode),
		DeliverySpec: deliverySpec{
			ServiceCode: p.ProductCode,
			Sender: sender{
				Name:           p.Sender.Name,
				Company:        p.Sender.Company,
				ContactPhone:   p.Sender.Phone,
				AddressDetails: addressOf(p.Sender),
			},
			Destination: destinationOf(p.Recipient),
			ParcelCharacter: parcelCharacteristics{
				Weight: p.Parcel.Weight,
			},
			PrintPreferences: printPreferences{
				OutputFormat: cfg.Get("output_format", "4x6"),
				Encoding:     encoding,
			},
			References: references{
				CustomerRef1: p.OrderReference,
				CustomerRef2: fmt.Sprintf("%d", p.InfoPackageID),
			},
			Settlement: settlementInfo{
				ContractID:              cfg.Get("contract_id", ""),
				IntendedMethodOfPayment: cfg.Get("payment_method", "Account"),
			},
		},
	}

	if p.Parcel.Length > 0 && p.Parcel.Width > 0 && p.Parcel.Height > 0 {
		doc.DeliverySpec.ParcelCharacter.Dimensions = &dimensions{
			Length: p.Parcel.Length,
			Width:  p.Parcel.Width,
			Height: p.Parcel.Height,
		}
	}
	if p.HasCashOnDelivery() {
		doc.DeliverySpec.Options = &options{Option: []option{
			{Code: "COD", Amount: p.CashOnDelivery.StringFixed(2)},
		}}
	}
	if p.Recipient.Email != "" {
		doc.DeliverySpec.Notification = &notification{Email: p.Recipient.Email, OnShipment: true, OnDelivery: true}
	}
	if p.Return {
		doc.ReturnSpec = &returnSpec{
			ServiceCode:     cfg.Get("return_service_code", p.ProductCode),
			ReturnRecipient: destinationOf(p.Sender),
		}
	}

	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "failed to marshal request").WithCause(err)
	}

	return &shipper.ProviderRequest{
		Carrier:  carrierCode,
		Endpoint: fmt.Sprintf("/rs/%s/%s/shipment", account, account),
		Body:     append([]byte(xml.Header), body...),
		Config:   cfg,
	}, nil
}

// Send creates the shipment, then downloads every label artifact in parallel.
// When an artifact download fails the response is returned with the error.
func (c *Client) Send(ctx context.Context, req *shipper.ProviderRequest) (*shipper.ProviderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "canadapost.Send", trace.WithAttributes(attribute.String("endpoint", req.Endpoint)))
	defer span.End()

	log := c.logger.Ctx(ctx)
	log.Info("Creating Canada Post shipment", zap.String("endpoint", req.Endpoint))

	info, raw, err := c.apiClient.CreateShipment(ctx, req.Endpoint, req.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("Canada Post API error", zap.Error(err))
		return rawResponse(raw), wrapError(err)
	}

	resp := &shipper.ProviderResponse{
		Carrier:        carrierCode,
		ShipmentNumber: info.TrackingPIN,
		StatusCode:     200,
		Body:           raw,
	}

	var links []Link
	for _, l := range info.Links {
		if l.Rel == relLabel || l.Rel == relReturnLabel {
			links = append(links, l)
		}
	}

	docs := make([]shipper.Document, len(links))
	g, gctx := errgroup.WithContext(ctx)
	for i, link := range links {
		g.Go(func() error {
			a, err := c.apiClient.GetArtifact(gctx, link)
			if err != nil {
				return err
			}
			docs[i] = documentOf(info, a)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("Canada Post artifact download failed", zap.String("shipment_id", info.ShipmentID), zap.Error(err))
		return resp, wrapError(err)
	}
	resp.Documents = docs

	log.Info("Canada Post shipment created",
		zap.String("shipment_id", info.ShipmentID),
		zap.String("tracking_pin", info.TrackingPIN),
		zap.Int("labels", len(docs)),
	)
	return resp, nil
}

// ParseLabels decodes the downloaded artifacts.
func (c *Client) ParseLabels(resp *shipper.ProviderResponse) ([]shipper.LabelArtifact, error) {
	return shipper.DecodeDocuments(carrierCode, resp.Documents)
}

func documentOf(info *ShipmentInfo, a *Artifact) shipper.Document {
	doc := shipper.Document{
		TrackerCode: info.TrackingPIN,
		Type:        shipper.LabelParcel,
		Format:      shipper.LabelPDF,
		Encoded:     base64.StdEncoding.EncodeToString(a.Data),
	}
	if a.Link.Rel == relReturnLabel {
		doc.Type = shipper.LabelReturn
		if info.ReturnTrackingPIN != "" {
			doc.TrackerCode = info.ReturnTrackingPIN
		}
	}
	if a.Link.MediaType == "application/zpl" {
		doc.Format = shipper.LabelZPL
	}
	return doc
}

func addressOf(a shipper.Address) addressDetails {
	return addressDetails{
		AddressLine1:  a.Line1,
		AddressLine2:  a.Line2,
		City:          a.City,
		ProvState:     a.ProvinceCode,
		CountryCode:   a.CountryCode,
		PostalZipCode: normalizePostalCode(a.PostalCode),
	}
}

func destinationOf(a shipper.Address) destination {
	return destination{
		Name:           a.Name,
		Company:        a.Company,
		ClientVoice:    a.Phone,
		AddressDetails: addressOf(a),
	}
}

func rawResponse(raw []byte) *shipper.ProviderResponse {
	if raw == nil {
		return nil
	}
	return &shipper.ProviderResponse{Carrier: carrierCode, Body: raw}
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
