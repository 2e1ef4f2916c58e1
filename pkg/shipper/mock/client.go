// Package mock provides a deterministic adapter for testing and local runs.
package mock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tournevent/carrierhub/pkg/shipper"
)

// Client is a mock carrier adapter. The zero hooks produce a successful
// shipment with one parcel label per package unit.
type Client struct {
	code string

	// OnBuild, when set, can reject the payload before it is encoded.
	OnBuild func(payload *shipper.ShipmentPayload, cfg shipper.Configuration) error
	// OnSend, when set, is called instead of the default response builder.
	OnSend func(ctx context.Context, req *shipper.ProviderRequest) (*shipper.ProviderResponse, error)
	// OnParse, when set, is called instead of the default label decoder.
	OnParse func(resp *shipper.ProviderResponse) ([]shipper.LabelArtifact, error)

	mu    sync.Mutex
	sends int
}

var _ shipper.Adapter = (*Client)(nil)

type request struct {
	OrderID       int64   `json:"order_id"`
	InfoPackageID int64   `json:"info_package_id"`
	Product       string  `json:"product"`
	Quantity      int     `json:"quantity"`
	Weight        float64 `json:"weight"`
	Return        bool    `json:"return"`
	COD           string  `json:"cod,omitempty"`
	Recipient     string  `json:"recipient"`
}

// New creates a new mock adapter registered under code.
func New(code string) *Client {
	return &Client{code: code}
}

// Code returns the carrier code.
func (c *Client) Code() string {
	return c.code
}

// Sends returns how many times Send was called.
func (c *Client) Sends() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sends
}

// BuildRequest encodes the payload as JSON.
func (c *Client) BuildRequest(payload *shipper.ShipmentPayload, cfg shipper.Configuration) (*shipper.ProviderRequest, error) {
	if c.OnBuild != nil {
		if err := c.OnBuild(payload, cfg); err != nil {
			return nil, err
		}
	}
	r := request{
		OrderID:       payload.OrderID,
		InfoPackageID: payload.InfoPackageID,
		Product:       payload.ProductCode,
		Quantity:      payload.Parcel.Quantity,
		Weight:        payload.Parcel.Weight,
		Return:        payload.Return,
		Recipient:     payload.Recipient.Name,
	}
	if payload.HasCashOnDelivery() {
		r.COD = payload.CashOnDelivery.StringFixed(2)
	}
	body, err := json.Marshal(r)
	if err != nil {
		return nil, shipper.NewShipperError(c.code, shipper.CodeInvalidInput, "encode request").WithCause(err)
	}
	return &shipper.ProviderRequest{Carrier: c.code, Endpoint: "mock://shipments", Body: body, Config: cfg}, nil
}

// Send returns a response derived from the request only.
func (c *Client) Send(ctx context.Context, req *shipper.ProviderRequest) (*shipper.ProviderResponse, error) {
	c.mu.Lock()
	c.sends++
	c.mu.Unlock()

	if c.OnSend != nil {
		return c.OnSend(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, shipper.TransportError(c.code, err)
	}

	var r request
	if err := json.Unmarshal(req.Body, &r); err != nil {
		return nil, shipper.NewShipperError(c.code, shipper.CodeInvalidInput, "decode request").WithCause(err)
	}

	number := fmt.Sprintf("MOCK%010d", r.InfoPackageID)
	qty := r.Quantity
	if qty < 1 {
		qty = 1
	}
	docs := make([]shipper.Document, 0, qty+1)
	for i := 1; i <= qty; i++ {
		tracker := fmt.Sprintf("%s-%d", number, i)
		docs = append(docs, shipper.Document{
			TrackerCode: tracker,
			Type:        shipper.LabelParcel,
			Format:      shipper.LabelPDF,
			Encoded:     base64.StdEncoding.EncodeToString(LabelBytes(tracker)),
		})
	}
	if r.Return {
		tracker := number + "-R"
		docs = append(docs, shipper.Document{
			TrackerCode: tracker,
			Type:        shipper.LabelReturn,
			Format:      shipper.LabelPDF,
			Encoded:     base64.StdEncoding.EncodeToString(LabelBytes(tracker)),
		})
	}

	body, _ := json.Marshal(map[string]any{"shipment_number": number, "labels": len(docs)})
	return &shipper.ProviderResponse{
		Carrier:        c.code,
		ShipmentNumber: number,
		StatusCode:     200,
		Body:           body,
		Documents:      docs,
	}, nil
}

// ParseLabels decodes the base64 documents of the response.
func (c *Client) ParseLabels(resp *shipper.ProviderResponse) ([]shipper.LabelArtifact, error) {
	if c.OnParse != nil {
		return c.OnParse(resp)
	}
	return shipper.DecodeDocuments(c.code, resp.Documents)
}

// LabelBytes is the label content the mock produces for a tracker code.
func LabelBytes(tracker string) []byte {
	return []byte("%PDF-1.4\n% mock label " + tracker + "\n%%EOF\n")
}
