package shipper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ShipperError represents an error from a shipping carrier.
type ShipperError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is matches another ShipperError by code.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// Error codes shared by adapters.
const (
	CodeNetwork      = "NETWORK_ERROR"
	CodeTimeout      = "TIMEOUT"
	CodeRejected     = "REJECTED"
	CodeInvalidInput = "INVALID_REQUEST"
	CodeBadResponse  = "BAD_RESPONSE"
	CodeLabelDecode  = "LABEL_DECODE"
)

var (
	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrNoLabels indicates the provider answered without any label document.
	ErrNoLabels = errors.New("no labels in response")

	// ErrCarrierNotFound indicates no adapter is registered for a carrier code.
	ErrCarrierNotFound = errors.New("carrier not found")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// TransportError wraps a failure that happened before the provider answered.
// Deadlines and network errors are retryable.
func TransportError(carrier string, err error) *ShipperError {
	code := CodeNetwork
	if errors.Is(err, context.DeadlineExceeded) {
		code = CodeTimeout
	}
	return NewShipperError(carrier, code, "request failed").
		WithCause(err).
		WithRetryable(IsRetryable(err))
}

// StatusError classifies an HTTP status returned by a provider.
// 5xx and 429 are retryable, anything else is a rejection.
func StatusError(carrier string, status int, message string) *ShipperError {
	retryable := status >= 500 || status == 429
	code := CodeRejected
	var cause error
	switch {
	case status == 429:
		cause = ErrRateLimitExceeded
	case status == 401 || status == 403:
		cause = ErrAuthenticationFailed
	case status >= 500:
		cause = ErrServiceUnavailable
	}
	e := NewShipperError(carrier, code, message).WithStatusCode(status).WithRetryable(retryable)
	if cause != nil {
		e.WithCause(cause)
	}
	return e
}
