package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierhub/pkg/shipper"
	"github.com/tournevent/carrierhub/pkg/shipper/mock"
)

func payload() *shipper.ShipmentPayload {
	return &shipper.ShipmentPayload{
		OrderID:        100,
		InfoPackageID:  42,
		ProductCode:    "DOM.EP",
		Recipient:      shipper.Address{Name: "Jane Doe"},
		Parcel:         shipper.Parcel{Quantity: 2, Weight: 5},
		CashOnDelivery: decimal.RequireFromString("12.5"),
		Return:         true,
	}
}

func TestClient_RoundTrip(t *testing.T) {
	c := mock.New("mock")
	ctx := context.Background()

	req, err := c.BuildRequest(payload(), shipper.Configuration{})
	require.NoError(t, err)
	assert.Contains(t, string(req.Body), `"cod":"12.50"`)

	resp, err := c.Send(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "MOCK0000000042", resp.ShipmentNumber)

	labels, err := c.ParseLabels(resp)
	require.NoError(t, err)
	require.Len(t, labels, 3)
	assert.Equal(t, "MOCK0000000042-1", labels[0].TrackerCode)
	assert.Equal(t, shipper.LabelReturn, labels[2].Type)
	assert.Equal(t, mock.LabelBytes("MOCK0000000042-2"), labels[1].Data)
	assert.Equal(t, 1, c.Sends())
}

func TestClient_Deterministic(t *testing.T) {
	c := mock.New("mock")
	req1, _ := c.BuildRequest(payload(), nil)
	req2, _ := c.BuildRequest(payload(), nil)
	assert.Equal(t, req1.Body, req2.Body)

	r1, err := c.Send(context.Background(), req1)
	require.NoError(t, err)
	r2, err := c.Send(context.Background(), req2)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestClient_SendHook(t *testing.T) {
	c := mock.New("mock")
	c.OnSend = func(ctx context.Context, req *shipper.ProviderRequest) (*shipper.ProviderResponse, error) {
		return nil, shipper.NewShipperError("mock", shipper.CodeRejected, "nope")
	}
	req, err := c.BuildRequest(payload(), nil)
	require.NoError(t, err)

	_, err = c.Send(context.Background(), req)
	require.Error(t, err)
	assert.False(t, shipper.IsRetryable(err))
}

func TestClient_CancelledContext(t *testing.T) {
	c := mock.New("mock")
	req, err := c.BuildRequest(payload(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Send(ctx, req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
