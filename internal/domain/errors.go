package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind groups error codes by how callers react to them.
type Kind string

const (
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindUnconfigured   Kind = "UNCONFIGURED"
	KindAdapterFailure Kind = "ADAPTER_FAILURE"
	KindLabelFailure   Kind = "LABEL_FAILURE"
	KindValidation     Kind = "VALIDATION"
)

// HTTPStatus maps the kind to the status code returned by the transport.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnconfigured:
		return http.StatusUnprocessableEntity
	case KindAdapterFailure:
		return http.StatusBadGateway
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is one violated constraint of caller input.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (f FieldError) String() string {
	if f.Param != "" {
		return fmt.Sprintf("%s: %s=%s", f.Field, f.Rule, f.Param)
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Rule)
}

// Error is the typed error returned by services. Errors compare equal with
// errors.Is when their codes match.
type Error struct {
	Kind      Kind
	Code      string
	Message   string
	Fields    []FieldError
	Cause     error
	Transient bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.String()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("]")
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another Error by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Withf returns a copy of e with a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	c := *e
	c.Message = fmt.Sprintf(format, args...)
	return &c
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Cause = err
	return &c
}

// WithFields returns a copy of e listing the violated fields.
func (e *Error) WithFields(fields []FieldError) *Error {
	c := *e
	c.Fields = fields
	return &c
}

// WithTransient returns a copy of e flagged as safe to retry.
func (e *Error) WithTransient(transient bool) *Error {
	c := *e
	c.Transient = transient
	return &c
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrInfoPackageNotFound          = newError(KindNotFound, "INFO_PACKAGE_NOT_FOUND", "info package not found")
	ErrOrderNotFound                = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrShipmentNotFound             = newError(KindNotFound, "SHIPMENT_NOT_FOUND", "shipment not found")
	ErrCarrierNotFound              = newError(KindNotFound, "CARRIER_NOT_FOUND", "carrier not found")
	ErrCarrierConfigurationNotFound = newError(KindNotFound, "CARRIER_CONFIGURATION_NOT_FOUND", "carrier configuration not found")
	ErrTypeShipmentNotFound         = newError(KindNotFound, "TYPE_SHIPMENT_NOT_FOUND", "type shipment not found")
	ErrValidationRuleNotFound       = newError(KindNotFound, "VALIDATION_RULE_NOT_FOUND", "validation rule not found")
	ErrLogEntryNotFound             = newError(KindNotFound, "LOG_ENTRY_NOT_FOUND", "log entry not found")
	ErrLabelNotFound                = newError(KindNotFound, "LABEL_NOT_FOUND", "label not found")

	ErrShipmentAlreadyExists       = newError(KindConflict, "SHIPMENT_ALREADY_EXISTS", "an active shipment already exists for this package")
	ErrTypeShipmentCarrierConflict = newError(KindConflict, "TYPE_SHIPMENT_CARRIER_CONFLICT", "reference carrier is already mapped by another active type shipment")
	ErrConcurrentUpdate            = newError(KindConflict, "CONCURRENT_UPDATE", "transaction conflicted with a concurrent update")

	ErrCarrierNotConfigured = newError(KindUnconfigured, "CARRIER_NOT_CONFIGURED", "carrier is not configured")
	ErrTypeShipmentsMissing = newError(KindUnconfigured, "TYPE_SHIPMENTS_MISSING", "carrier has no active type shipment")

	ErrShipmentGenerationFailed = newError(KindAdapterFailure, "SHIPMENT_GENERATION_FAILED", "shipment generation failed")

	ErrShipmentLabelMissing = newError(KindLabelFailure, "SHIPMENT_LABEL_MISSING", "shipment has no labels")
	ErrShipmentLabelCorrupt = newError(KindLabelFailure, "SHIPMENT_LABEL_CORRUPT", "label content cannot be decoded")

	ErrInvalidConfigurationData = newError(KindValidation, "INVALID_CONFIGURATION_DATA", "invalid configuration data")
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsTransient reports whether err is a domain error flagged as retryable.
func IsTransient(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Transient
}
