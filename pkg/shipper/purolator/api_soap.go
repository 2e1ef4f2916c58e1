package purolator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"
	"time"
)

// SOAPAPIClient is the production implementation of APIClient using SOAP.
type SOAPAPIClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// SOAPAPIClientConfig holds configuration for the SOAP client.
type SOAPAPIClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// NewSOAPAPIClient creates a new SOAP-based API client for production use.
func NewSOAPAPIClient(cfg SOAPAPIClientConfig) *SOAPAPIClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &SOAPAPIClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// CreateShipment creates a new shipment via the Purolator ShippingService.
func (c *SOAPAPIClient) CreateShipment(ctx context.Context, envelope []byte) (*ShipmentResult, []byte, error) {
	raw, err := c.call(ctx, c.baseURL+"/EWS/V2/Shipping/ShippingService.asmx", "CreateShipment", envelope)
	if err != nil {
		return nil, raw, err
	}

	var env soapEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, raw, fmt.Errorf("failed to parse response: %w", err)
	}
	resp := env.Body.CreateShipmentResponse
	if resp == nil {
		return nil, raw, &APIError{StatusCode: http.StatusOK, Code: "PARSE_ERROR", Description: "No shipment data in response"}
	}
	if err := resp.ResponseInformation.err(); err != nil {
		return nil, raw, err
	}

	result := &ShipmentResult{
		ShipmentPIN:       resp.ShipmentPIN.Value,
		ReturnShipmentPIN: resp.ReturnShipmentPIN.Value,
	}
	for _, pin := range resp.PiecePINs.PIN {
		result.PiecePINs = append(result.PiecePINs, pin.Value)
	}
	return result, raw, nil
}

// GetDocuments retrieves label documents via ShippingDocumentsService.
func (c *SOAPAPIClient) GetDocuments(ctx context.Context, pins []string, documentType string) ([]Document, error) {
	body, err := renderEnvelope(documentsTemplate, struct {
		PINs         []string
		DocumentType string
	}{pins, documentType}, "docs")
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	raw, err := c.call(ctx, c.baseURL+"/EWS/V1/ShippingDocuments/ShippingDocumentsService.asmx", "GetDocuments", body)
	if err != nil {
		return nil, err
	}

	var env soapEnvelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	resp := env.Body.GetDocumentsResponse
	if resp == nil {
		return nil, &APIError{StatusCode: http.StatusOK, Code: "PARSE_ERROR", Description: "No document data in response"}
	}
	if err := resp.ResponseInformation.err(); err != nil {
		return nil, err
	}

	var docs []Document
	for _, d := range resp.Documents.Document {
		for _, detail := range d.DocumentDetails {
			docs = append(docs, Document{
				PIN:    d.PIN.Value,
				Type:   detail.DocumentType,
				Status: detail.DocumentStatus,
				Data:   detail.Data,
			})
		}
	}
	return docs, nil
}

// call posts a SOAP envelope. Faults and non-200 replies become *APIError.
func (c *SOAPAPIClient) call(ctx context.Context, endpoint, action string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Purolator uses Basic Auth
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.password))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://purolator.com/pws/service/v2/"+action)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var env soapEnvelope
	if xml.Unmarshal(raw, &env) == nil && env.Body.Fault != nil {
		status := resp.StatusCode
		if env.Body.Fault.Code != faultServer && status >= 500 {
			// Client faults come back as 500 too.
			status = http.StatusBadRequest
		}
		return raw, &APIError{StatusCode: status, Code: env.Body.Fault.Code, Description: env.Body.Fault.String}
	}
	if resp.StatusCode != http.StatusOK {
		return raw, &APIError{StatusCode: resp.StatusCode, Code: fmt.Sprintf("HTTP_%d", resp.StatusCode), Description: string(raw)}
	}
	return raw, nil
}

// ============================================================================
// SOAP envelope rendering
// ============================================================================

const soapEnvelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:v2="http://purolator.com/pws/datatypes/v2">
  <soap:Header>
    <v2:RequestContext>
      <v2:Version>2.2</v2:Version>
      <v2:Language>en</v2:Language>
      <v2:GroupID>{{x .GroupID}}</v2:GroupID>
      <v2:RequestReference>{{x .RequestRef}}</v2:RequestReference>
    </v2:RequestContext>
  </soap:Header>
  <soap:Body>
    {{.Body}}
  </soap:Body>
</soap:Envelope>`

const shipmentTemplate = `<v2:CreateShipmentRequest>
      <v2:Shipment>
        <v2:SenderInformation>
          {{template "address" .Sender}}
        </v2:SenderInformation>
        <v2:ReceiverInformation>
          {{template "address" .Receiver}}
        </v2:ReceiverInformation>
        <v2:PackageInformation>
          <v2:ServiceID>{{x .ServiceID}}</v2:ServiceID>
          <v2:TotalWeight>
            <v2:Value>{{.Weight}}</v2:Value>
            <v2:WeightUnit>kg</v2:WeightUnit>
          </v2:TotalWeight>
          <v2:TotalPieces>{{.Pieces}}</v2:TotalPieces>
          {{- if .COD}}
          <v2:OptionsInformation>
            <v2:Options>
              <v2:OptionIDValuePair><v2:ID>CashOnDelivery</v2:ID><v2:Value>true</v2:Value></v2:OptionIDValuePair>
              <v2:OptionIDValuePair><v2:ID>CODAmount</v2:ID><v2:Value>{{x .COD}}</v2:Value></v2:OptionIDValuePair>
            </v2:Options>
          </v2:OptionsInformation>
          {{- end}}
        </v2:PackageInformation>
        <v2:PaymentInformation>
          <v2:PaymentType>Sender</v2:PaymentType>
          <v2:RegisteredAccountNumber>{{x .Account}}</v2:RegisteredAccountNumber>
        </v2:PaymentInformation>
        <v2:PickupInformation>
          <v2:PickupType>{{if .Pickup}}PreScheduled{{else}}DropOff{{end}}</v2:PickupType>
        </v2:PickupInformation>
        {{- if .Reference}}
        <v2:TrackingReferenceInformation>
          <v2:Reference1>{{x .Reference}}</v2:Reference1>
        </v2:TrackingReferenceInformation>
        {{- end}}
      </v2:Shipment>
      <v2:PrinterType>{{x .PrinterType}}</v2:PrinterType>
      {{- if .Return}}
      <v2:ReturnShipmentInformation>
        <v2:NumberOfReturnShipments>1</v2:NumberOfReturnShipments>
      </v2:ReturnShipmentInformation>
      {{- end}}
    </v2:CreateShipmentRequest>
{{define "address"}}<v2:Address>
            <v2:Name>{{x .Name}}</v2:Name>
            <v2:Company>{{x .Company}}</v2:Company>
            <v2:StreetNumber>{{x .StreetNumber}}</v2:StreetNumber>
            <v2:StreetName>{{x .StreetName}}</v2:StreetName>
            <v2:City>{{x .City}}</v2:City>
            <v2:Province>{{x .Province}}</v2:Province>
            <v2:Country>{{x .Country}}</v2:Country>
            <v2:PostalCode>{{x .PostalCode}}</v2:PostalCode>
            <v2:PhoneNumber>
              <v2:CountryCode>1</v2:CountryCode>
              <v2:AreaCode>{{x .AreaCode}}</v2:AreaCode>
              <v2:Phone>{{x .Phone}}</v2:Phone>
            </v2:PhoneNumber>
          </v2:Address>{{end}}`

const documentsTemplate = `<v2:GetDocumentsRequest>
      <v2:DocumentCriterium>
        {{- range .PINs}}
        <v2:DocumentCriteria>
          <v2:PIN><v2:Value>{{x .}}</v2:Value></v2:PIN>
          <v2:DocumentTypes><v2:DocumentType>{{x $.DocumentType}}</v2:DocumentType></v2:DocumentTypes>
        </v2:DocumentCriteria>
        {{- end}}
      </v2:DocumentCriterium>
    </v2:GetDocumentsRequest>`

var templateFuncs = template.FuncMap{
	"x": func(s string) string {
		var b strings.Builder
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	},
}

// renderEnvelope executes the body template and wraps it in a SOAP envelope.
func renderEnvelope(bodyTemplate string, data any, ref string) ([]byte, error) {
	bodyTmpl, err := template.New("body").Funcs(templateFuncs).Parse(bodyTemplate)
	if err != nil {
		return nil, err
	}

	var bodyBuf bytes.Buffer
	if err := bodyTmpl.Execute(&bodyBuf, data); err != nil {
		return nil, err
	}

	envTmpl, err := template.New("envelope").Funcs(templateFuncs).Parse(soapEnvelopeTemplate)
	if err != nil {
		return nil, err
	}

	envData := struct {
		GroupID    string
		RequestRef string
		Body       string
	}{
		GroupID:    "carrierhub",
		RequestRef: ref,
		Body:       bodyBuf.String(),
	}

	var envBuf bytes.Buffer
	if err := envTmpl.Execute(&envBuf, envData); err != nil {
		return nil, err
	}

	return envBuf.Bytes(), nil
}

// ============================================================================
// SOAP Response Parsers - XML Types
// ============================================================================

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault                  *soapFault              `xml:"Fault,omitempty"`
	CreateShipmentResponse *createShipmentResponse `xml:"CreateShipmentResponse,omitempty"`
	GetDocumentsResponse   *getDocumentsResponse   `xml:"GetDocumentsResponse,omitempty"`
}

type soapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
}

type responseInfo struct {
	Errors []responseError `xml:"Errors>Error"`
}

type responseError struct {
	Code        string `xml:"Code"`
	Description string `xml:"Description"`
}

// err reports the first validation error of a reply. Purolator answers 200 with
// an error list when it rejects the request.
func (r responseInfo) err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	e := r.Errors[0]
	return &APIError{StatusCode: http.StatusUnprocessableEntity, Code: e.Code, Description: e.Description}
}

type createShipmentResponse struct {
	ResponseInformation responseInfo `xml:"ResponseInformation"`
	ShipmentPIN         soapPIN      `xml:"ShipmentPIN"`
	PiecePINs           piecePINs    `xml:"PiecePINs"`
	ReturnShipmentPIN   soapPIN      `xml:"ReturnShipmentPINs>PIN"`
}

type soapPIN struct {
	Value string `xml:"Value"`
}

type piecePINs struct {
	PIN []soapPIN `xml:"PIN"`
}

type getDocumentsResponse struct {
	ResponseInformation responseInfo  `xml:"ResponseInformation"`
	Documents           soapDocuments `xml:"Documents"`
}

type soapDocuments struct {
	Document []soapDocument `xml:"Document"`
}

type soapDocument struct {
	PIN             soapPIN          `xml:"PIN"`
	DocumentDetails []documentDetail `xml:"DocumentDetails>DocumentDetail"`
}

type documentDetail struct {
	DocumentType   string `xml:"DocumentType"`
	DocumentStatus string `xml:"DocumentStatus"`
	Data           string `xml:"Data"` // Base64 encoded
}

var _ APIClient = (*SOAPAPIClient)(nil)
