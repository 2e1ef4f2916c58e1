// Package shipper provides an abstraction layer for shipping carriers.
package shipper

import (
	"context"
)

// Adapter is the contract every carrier integration implements.
//
// BuildRequest and ParseLabels are pure transforms. Only Send performs I/O and
// it reports failures as *ShipperError, with Retryable set for transient
// network problems and unset when the provider rejected the shipment.
type Adapter interface {
	// Code returns the carrier code the adapter is registered under (e.g., "canadapost").
	Code() string

	// BuildRequest turns a carrier-agnostic payload into the provider's wire request.
	BuildRequest(payload *ShipmentPayload, cfg Configuration) (*ProviderRequest, error)

	// Send submits the request to the provider. On failure it may still return
	// whatever raw response it received, for auditing.
	Send(ctx context.Context, req *ProviderRequest) (*ProviderResponse, error)

	// ParseLabels decodes the label artifacts carried by a provider response.
	ParseLabels(resp *ProviderResponse) ([]LabelArtifact, error)
}
