package shipper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tournevent/carrierhub/pkg/shipper"
)

func TestShipperError_Error(t *testing.T) {
	err := shipper.NewShipperError("freightcom", "INVALID_ADDRESS", "Invalid postal code")
	assert.Equal(t, "freightcom error (INVALID_ADDRESS): Invalid postal code", err.Error())
}

func TestShipperError_ErrorWithCause(t *testing.T) {
	cause := errors.New("network timeout")
	err := shipper.NewShipperError("freightcom", "API_ERROR", "API call failed").WithCause(cause)
	assert.Contains(t, err.Error(), "API call failed")
	assert.Contains(t, err.Error(), "network timeout")
	assert.True(t, errors.Is(err, cause))
}

func TestShipperError_IsByCode(t *testing.T) {
	err1 := shipper.NewShipperError("freightcom", "INVALID_ADDRESS", "Invalid postal code")
	err2 := shipper.NewShipperError("canadapost", "INVALID_ADDRESS", "Different message")
	err3 := shipper.NewShipperError("freightcom", "DIFFERENT_CODE", "Different error")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"retryable shipper error", shipper.NewShipperError("x", "RATE_LIMIT", "slow down").WithRetryable(true), true},
		{"rejected shipper error", shipper.NewShipperError("x", "INVALID_ADDRESS", "bad").WithRetryable(false), false},
		{"service unavailable", shipper.ErrServiceUnavailable, true},
		{"rate limit", shipper.ErrRateLimitExceeded, true},
		{"deadline", context.DeadlineExceeded, true},
		{"invalid address", shipper.ErrInvalidAddress, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shipper.IsRetryable(tt.err))
		})
	}
}

func TestTransportError_Deadline(t *testing.T) {
	err := shipper.TransportError("canadapost", context.DeadlineExceeded)
	assert.Equal(t, shipper.CodeTimeout, err.Code)
	assert.True(t, err.Retryable)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
		cause     error
	}{
		{400, false, nil},
		{401, false, shipper.ErrAuthenticationFailed},
		{422, false, nil},
		{429, true, shipper.ErrRateLimitExceeded},
		{503, true, shipper.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		err := shipper.StatusError("purolator", tt.status, "status")
		assert.Equal(t, tt.status, err.StatusCode)
		assert.Equal(t, tt.retryable, err.Retryable, "status %d", tt.status)
		if tt.cause != nil {
			assert.ErrorIs(t, err, tt.cause)
		}
	}
}
