package shipper_test

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierhub/pkg/shipper"
)

func TestMergeConfiguration_Precedence(t *testing.T) {
	global := shipper.Configuration{"currency": "CAD", "label_format": "pdf", "sender_city": "Toronto"}
	carrier := shipper.Configuration{"label_format": "zpl", "api_key": "carrier-key"}
	typeShipment := shipper.Configuration{"api_key": "product-key"}

	got := shipper.MergeConfiguration(global, carrier, typeShipment)

	assert.Equal(t, "CAD", got["currency"])
	assert.Equal(t, "zpl", got["label_format"])
	assert.Equal(t, "product-key", got["api_key"])
	assert.Equal(t, "Toronto", got["sender_city"])
	assert.Equal(t, "pdf", global["label_format"], "inputs are not modified")
}

func TestMergeConfiguration_NilLayers(t *testing.T) {
	got := shipper.MergeConfiguration(nil, shipper.Configuration{"a": "1"}, nil)
	assert.Equal(t, shipper.Configuration{"a": "1"}, got)
}

func TestConfiguration_Missing(t *testing.T) {
	cfg := shipper.Configuration{"api_key": "k", "api_secret": "  ", "account_number": ""}
	assert.Equal(t, []string{"account_number", "api_secret", "base_url"},
		cfg.Missing("api_key", "base_url", "api_secret", "account_number"))
	assert.Empty(t, cfg.Missing("api_key"))
}

func TestConfiguration_Duration(t *testing.T) {
	cfg := shipper.Configuration{"a": "2s", "b": "15", "c": "soon"}
	assert.Equal(t, 2*time.Second, cfg.Duration("a", time.Minute))
	assert.Equal(t, 15*time.Second, cfg.Duration("b", time.Minute))
	assert.Equal(t, time.Minute, cfg.Duration("c", time.Minute))
	assert.Equal(t, time.Minute, cfg.Duration("missing", time.Minute))
}

func TestConfiguration_Sender(t *testing.T) {
	cfg := shipper.Configuration{
		"sender_name":     "Warehouse",
		"sender_address1": "1 Dock Rd",
		"sender_city":     "Ottawa",
		"sender_postcode": "K1A0B1",
		"sender_country":  "CA",
	}
	sender := cfg.Sender()
	assert.Equal(t, "Warehouse", sender.Name)
	assert.Equal(t, "1 Dock Rd", sender.Line1)
	assert.Equal(t, "K1A0B1", sender.PostalCode)
	assert.Equal(t, "CA", sender.CountryCode)
}

func TestDecodeDocuments(t *testing.T) {
	raw := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff}
	docs := []shipper.Document{
		{TrackerCode: "T1", Encoded: base64.StdEncoding.EncodeToString(raw)},
		{TrackerCode: "T2", Type: shipper.LabelReturn, Format: shipper.LabelZPL, Encoded: base64.StdEncoding.EncodeToString([]byte("^XA^XZ"))},
	}

	got, err := shipper.DecodeDocuments("mock", docs)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, raw, got[0].Data)
	assert.Equal(t, shipper.LabelParcel, got[0].Type)
	assert.Equal(t, shipper.LabelPDF, got[0].Format)
	assert.Equal(t, shipper.LabelReturn, got[1].Type)
	assert.Equal(t, shipper.LabelZPL, got[1].Format)
}

func TestDecodeDocuments_Empty(t *testing.T) {
	_, err := shipper.DecodeDocuments("mock", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shipper.ErrNoLabels))
	assert.False(t, shipper.IsRetryable(err))
}

func TestDecodeDocuments_Corrupt(t *testing.T) {
	_, err := shipper.DecodeDocuments("mock", []shipper.Document{{TrackerCode: "T9", Encoded: "!!not-base64"}})
	require.Error(t, err)

	var se *shipper.ShipperError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, shipper.CodeLabelDecode, se.Code)
	assert.Contains(t, se.Message, "T9")
}
