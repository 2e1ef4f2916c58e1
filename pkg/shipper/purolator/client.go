// Package purolator provides integration with the Purolator E-Ship web services.
package purolator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const carrierCode = "purolator"

// Config holds Purolator configuration.
type Config struct {
	Username      string
	Password      string
	AccountNumber string
	BaseURL       string
	UseMock       bool
	Timeout       time.Duration
}

// Client is the Purolator adapter.
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

var _ shipper.Adapter = (*Client)(nil)

// New creates a new Purolator client.
// If cfg.UseMock is true, it uses a mock API client for testing.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewSOAPAPIClient(SOAPAPIClientConfig{
			BaseURL:  cfg.BaseURL,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new Purolator client with a custom API client.
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

type soapAddress struct {
	Name         string
	Company      string
	StreetNumber string
	StreetName   string
	City         string
	Province     string
	Country      string
	PostalCode   string
	AreaCode     string
	Phone        string
}

type shipmentData struct {
	Sender      soapAddress
	Receiver    soapAddress
	ServiceID   string
	Weight      string
	Pieces      int
	COD         string
	Account     string
	Pickup      bool
	Reference   string
	PrinterType string
	Return      bool
}

// BuildRequest renders the CreateShipment SOAP envelope.
func (c *Client) BuildRequest(p *shipper.ShipmentPayload, cfg shipper.Configuration) (*shipper.ProviderRequest, error) {
	if p.ProductCode == "" {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "missing service id").
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

	account := cfg.Get(shipper.KeyAccount, c.config.AccountNumber)
	if account == "" {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "missing billing account")
	}

	pieces := p.Parcel.Quantity
	if pieces < 1 {
		pieces = 1
	}

	printer := "Regular"
	if strings.EqualFold(cfg.Get(shipper.KeyLabelFormat, ""), string(shipper.LabelZPL)) {
		printer = "Thermal"
	}

	data := shipmentData{
		Sender:      addressOf(p.Sender),
		Receiver:    addressOf(p.Recipient),
		ServiceID:   p.ProductCode,
		Weight:      fmt.Sprintf("%.2f", p.Parcel.Weight),
		Pieces:      pieces,
		Account:     account,
		Pickup:      p.HourFrom != "",
		Reference:   p.OrderReference,
		PrinterType: printer,
		Return:      p.Return,
	}
	if p.HasCashOnDelivery() {
		data.COD = p.CashOnDelivery.StringFixed(2)
	}

	body, err := renderEnvelope(shipmentTemplate, data, fmt.Sprintf("pkg-%d", p.InfoPackageID))
	if err != nil {
		return nil, shipper.NewShipperError(carrierCode, shipper.CodeInvalidInput, "failed to build request").WithCause(err)
	}

	return &shipper.ProviderRequest{
		Carrier:  carrierCode,
		Endpoint: "CreateShipment",
		Body:     body,
		Config:   cfg,
	}, nil
}

// Send books the shipment and fetches one document per piece, plus the return
// label when one was requested.
func (c *Client) Send(ctx context.Context, req *shipper.ProviderRequest) (*shipper.ProviderResponse, error) {
	ctx, span := c.tracer.Start(ctx, "purolator.Send")
	defer span.End()

	log := c.logger.Ctx(ctx)
	log.Info("Creating Purolator shipment")

	result, raw, err := c.apiClient.CreateShipment(ctx, req.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("Purolator API error", zap.Error(err))
		var resp *shipper.ProviderResponse
		if raw != nil {
			resp = &shipper.ProviderResponse{Carrier: carrierCode, Body: raw}
		}
		return resp, wrapError(err)
	}

	span.SetAttributes(
		attribute.String("shipment_pin", result.ShipmentPIN),
		attribute.Int("pieces", len(result.PiecePINs)),
	)

	resp := &shipper.ProviderResponse{
		Carrier:        carrierCode,
		ShipmentNumber: result.ShipmentPIN,
		StatusCode:     200,
		Body:           raw,
	}

	pins := append([]string(nil), result.PiecePINs...)
	if len(pins) == 0 {
		pins = append(pins, result.ShipmentPIN)
	}
	if result.ReturnShipmentPIN != "" {
		pins = append(pins, result.ReturnShipmentPIN)
	}

	docs, err := c.apiClient.GetDocuments(ctx, pins, documentBillOfLading)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("Failed to fetch Purolator documents", zap.String("pin", result.ShipmentPIN), zap.Error(err))
		return resp, wrapError(err)
	}

	format := shipper.LabelPDF
	if strings.EqualFold(req.Config.Get(shipper.KeyLabelFormat, ""), string(shipper.LabelZPL)) {
		format = shipper.LabelZPL
	}

	for _, d := range docs {
		if d.Status != "" && d.Status != statusCompleted {
			return resp, shipper.NewShipperError(carrierCode, shipper.CodeBadResponse,
				fmt.Sprintf("document for %s is %s", d.PIN, d.Status)).
				WithCause(shipper.ErrServiceUnavailable).
				WithRetryable(true)
		}
		typ := shipper.LabelParcel
		if d.Type == documentReturnLabel || d.PIN == result.ReturnShipmentPIN {
			typ = shipper.LabelReturn
		}
		resp.Documents = append(resp.Documents, shipper.Document{
			TrackerCode: d.PIN,
			Type:        typ,
			Format:      format,
			Encoded:     d.Data,
		})
	}

	log.Info("Purolator shipment created",
		zap.String("shipment_pin", result.ShipmentPIN),
		zap.Int("documents", len(resp.Documents)),
	)

	return resp, nil
}

// ParseLabels decodes the fetched documents.
func (c *Client) ParseLabels(resp *shipper.ProviderResponse) ([]shipper.LabelArtifact, error) {
	return shipper.DecodeDocuments(carrierCode, resp.Documents)
}

func addressOf(a shipper.Address) soapAddress {
	number, street := splitStreet(a.Line1)
	if a.Line2 != "" {
		street += " " + a.Line2
	}
	area, phone := splitPhone(a.Phone)
	return soapAddress{
		Name:         a.Name,
		Company:      a.Company,
		StreetNumber: number,
		StreetName:   street,
		City:         a.City,
		Province:     a.ProvinceCode,
		Country:      a.CountryCode,
		PostalCode:   strings.ToUpper(strings.ReplaceAll(a.PostalCode, " ", "")),
		AreaCode:     area,
		Phone:        phone,
	}
}

// splitStreet separates a leading civic number from the street name.
func splitStreet(line string) (string, string) {
	line = strings.TrimSpace(line)
	number, rest, ok := strings.Cut(line, " ")
	if !ok || number == "" || !unicode.IsDigit(rune(number[0])) {
		return "", line
	}
	return number, strings.TrimSpace(rest)
}

// splitPhone splits a North American number into area code and local number.
func splitPhone(phone string) (string, string) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", digits
	}
	return digits[:3], digits[3:]
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
