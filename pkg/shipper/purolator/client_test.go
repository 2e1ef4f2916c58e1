package purolator_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/tournevent/carrierhub/pkg/shipper/purolator"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func newTestClient(apiClient purolator.APIClient) *purolator.Client {
	logger := otelzap.New(zap.NewNop())
	return purolator.NewWithAPIClient(
		purolator.Config{AccountNumber: "9999999999"},
		apiClient,
		logger,
		nil,
	)
}

func testPayload() *shipper.ShipmentPayload {
	return &shipper.ShipmentPayload{
		OrderID:        100,
		OrderReference: "XKBKNABJK",
		InfoPackageID:  42,
		ProductCode:    "PurolatorExpress",
		Sender: shipper.Address{
			Name: "Warehouse", Line1: "123 Main St", City: "Toronto",
			ProvinceCode: "ON", PostalCode: "M5V 1A1", CountryCode: "CA", Phone: "+1 (416) 555-0100",
		},
		Recipient: shipper.Address{
			Name: "Receiver & Co", Line1: "456 Oak Ave", City: "Vancouver",
			ProvinceCode: "BC", PostalCode: "v6b 2w2", CountryCode: "CA", Phone: "604-555-0199",
		},
		Parcel: shipper.Parcel{Quantity: 3, Weight: 5},
	}
}

func TestClient_BuildRequest(t *testing.T) {
	client := newTestClient(purolator.NewMockAPIClient())
	p := testPayload()
	p.CashOnDelivery = decimal.RequireFromString("12.5")

	req, err := client.BuildRequest(p, shipper.Configuration{"label_format": "zpl"})
	require.NoError(t, err)
	assert.Equal(t, "CreateShipment", req.Endpoint)

	body := string(req.Body)
	assert.Contains(t, body, "<v2:ServiceID>PurolatorExpress</v2:ServiceID>")
	assert.Contains(t, body, "<v2:TotalPieces>3</v2:TotalPieces>")
	assert.Contains(t, body, "<v2:Value>5.00</v2:Value>")
	assert.Contains(t, body, "<v2:Value>12.50</v2:Value>")
	assert.Contains(t, body, "<v2:RegisteredAccountNumber>9999999999</v2:RegisteredAccountNumber>")
	assert.Contains(t, body, "<v2:PrinterType>Thermal</v2:PrinterType>")
	assert.Contains(t, body, "<v2:StreetNumber>456</v2:StreetNumber>")
	assert.Contains(t, body, "<v2:PostalCode>V6B2W2</v2:PostalCode>")
	assert.Contains(t, body, "<v2:AreaCode>416</v2:AreaCode>")
	assert.Contains(t, body, "Receiver &amp; Co")
	assert.NotContains(t, body, "ReturnShipmentInformation")
}

func TestClient_BuildRequest_AccountFromConfiguration(t *testing.T) {
	client := newTestClient(purolator.NewMockAPIClient())

	req, err := client.BuildRequest(testPayload(), shipper.Configuration{"account_number": "1234"})
	require.NoError(t, err)
	assert.Contains(t, string(req.Body), "<v2:RegisteredAccountNumber>1234</v2:RegisteredAccountNumber>")
	assert.Contains(t, string(req.Body), "<v2:PrinterType>Regular</v2:PrinterType>")
}

func TestClient_BuildRequest_Invalid(t *testing.T) {
	client := newTestClient(purolator.NewMockAPIClient())

	tests := []struct {
		name   string
		mutate func(p *shipper.ShipmentPayload)
		target error
	}{
		{"missing service", func(p *shipper.ShipmentPayload) { p.ProductCode = "" }, shipper.ErrInvalidPackage},
		{"zero weight", func(p *shipper.ShipmentPayload) { p.Parcel.Weight = 0 }, shipper.ErrInvalidPackage},
		{"missing postal code", func(p *shipper.ShipmentPayload) { p.Recipient.PostalCode = "" }, shipper.ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPayload()
			tt.mutate(p)
			_, err := client.BuildRequest(p, nil)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestClient_SendAndParse(t *testing.T) {
	client := newTestClient(purolator.NewMockAPIClient())
	p := testPayload()
	p.Return = true

	req, err := client.BuildRequest(p, nil)
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ShipmentNumber)
	assert.Contains(t, string(resp.Body), resp.ShipmentNumber)

	labels, err := client.ParseLabels(resp)
	require.NoError(t, err)
	require.Len(t, labels, 4)
	assert.Equal(t, resp.ShipmentNumber, labels[0].TrackerCode)
	for _, l := range labels[:3] {
		assert.Equal(t, shipper.LabelParcel, l.Type)
		assert.Equal(t, shipper.LabelPDF, l.Format)
		assert.Equal(t, "%PDF-1.4 purolator "+l.TrackerCode, string(l.Data))
	}
	assert.Equal(t, shipper.LabelReturn, labels[3].Type)
}

func TestClient_Send_Rejected(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	req, err := client.BuildRequest(testPayload(), nil)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), req)
	require.Error(t, err)
	assert.False(t, shipper.IsRetryable(err))

	var apiErr *purolator.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "1100570", apiErr.Code)
}

func TestClient_Send_DocumentNotReady(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.OnGetDocuments = func(ctx context.Context, pins []string, documentType string) ([]purolator.Document, error) {
		return []purolator.Document{{PIN: pins[0], Status: "InProgress"}}, nil
	}
	client := newTestClient(mockAPI)

	req, err := client.BuildRequest(testPayload(), nil)
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), req)
	require.Error(t, err)
	assert.True(t, shipper.IsRetryable(err))
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.ShipmentNumber)
}

func TestClient_Send_Timeout(t *testing.T) {
	mockAPI := purolator.NewMockAPIClient()
	mockAPI.SimulateLatency = time.Second
	client := newTestClient(mockAPI)

	req, err := client.BuildRequest(testPayload(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = client.Send(ctx, req)
	require.Error(t, err)
	assert.True(t, shipper.IsRetryable(err))

	var se *shipper.ShipperError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, shipper.CodeTimeout, se.Code)
}

const createShipmentReply = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <CreateShipmentResponse xmlns="http://purolator.com/pws/datatypes/v2">
      <ResponseInformation><Errors/></ResponseInformation>
      <ShipmentPIN><Value>329014521622</Value></ShipmentPIN>
      <PiecePINs><PIN><Value>329014521622</Value></PIN></PiecePINs>
    </CreateShipmentResponse>
  </s:Body>
</s:Envelope>`

const getDocumentsReply = `<?xml version="1.0" encoding="utf-8"?>
<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Body>
    <GetDocumentsResponse xmlns="http://purolator.com/pws/datatypes/v1">
      <ResponseInformation><Errors/></ResponseInformation>
      <Documents>
        <Document>
          <PIN><Value>329014521622</Value></PIN>
          <DocumentDetails>
            <DocumentDetail>
              <DocumentType>DomesticBillOfLading</DocumentType>
              <DocumentStatus>Completed</DocumentStatus>
              <Data>JVBERi0=</Data>
            </DocumentDetail>
          </DocumentDetails>
        </Document>
      </Documents>
    </GetDocumentsResponse>
  </s:Body>
</s:Envelope>`

func TestSOAPAPIClient_CreateShipmentAndDocuments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "user", user)
		assert.Equal(t, "pass", pass)
		_, _ = io.ReadAll(r.Body)

		switch {
		case strings.HasSuffix(r.Header.Get("SOAPAction"), "/CreateShipment"):
			_, _ = io.WriteString(w, createShipmentReply)
		case strings.HasSuffix(r.Header.Get("SOAPAction"), "/GetDocuments"):
			_, _ = io.WriteString(w, getDocumentsReply)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api := purolator.NewSOAPAPIClient(purolator.SOAPAPIClientConfig{BaseURL: srv.URL, Username: "user", Password: "pass"})
	client := newTestClient(api)

	req, err := client.BuildRequest(testPayload(), nil)
	require.NoError(t, err)
	resp, err := client.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "329014521622", resp.ShipmentNumber)

	labels, err := client.ParseLabels(resp)
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Equal(t, []byte("%PDF-"), labels[0].Data)
}

func TestSOAPAPIClient_ValidationErrorIsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<CreateShipmentResponse><ResponseInformation><Errors><Error>
<Code>1100518</Code><Description>Invalid postal code</Description>
</Error></Errors></ResponseInformation></CreateShipmentResponse></s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	client := newTestClient(purolator.NewSOAPAPIClient(purolator.SOAPAPIClientConfig{BaseURL: srv.URL}))
	req, err := client.BuildRequest(testPayload(), nil)
	require.NoError(t, err)

	resp, err := client.Send(context.Background(), req)
	require.Error(t, err)
	assert.False(t, shipper.IsRetryable(err))
	assert.Contains(t, err.Error(), "Invalid postal code")
	require.NotNil(t, resp)
	assert.Contains(t, string(resp.Body), "1100518")
}

func TestSOAPAPIClient_ServerFaultIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>
<s:Fault><faultcode>soap:Server</faultcode><faultstring>Service busy</faultstring></s:Fault>
</s:Body></s:Envelope>`)
	}))
	defer srv.Close()

	client := newTestClient(purolator.NewSOAPAPIClient(purolator.SOAPAPIClientConfig{BaseURL: srv.URL}))
	req, err := client.BuildRequest(testPayload(), nil)
	require.NoError(t, err)

	_, err = client.Send(context.Background(), req)
	require.Error(t, err)
	assert.True(t, shipper.IsRetryable(err))
	assert.ErrorIs(t, err, shipper.ErrServiceUnavailable)
}
