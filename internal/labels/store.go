// Package labels stores the label artifacts of shipments and reads them back.
package labels

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/tournevent/carrierhub/internal/domain"
	"github.com/tournevent/carrierhub/pkg/shipper"
)

// Store encodes label artifacts for persistence and decodes them on the way out.
type Store struct {
	repo domain.LabelRepository
}

// New creates a label store over repo.
func New(repo domain.LabelRepository) *Store {
	return &Store{repo: repo}
}

// Encode turns artifacts into labels ready to be created. ShipmentID is left
// for the caller to set.
func Encode(artifacts []shipper.LabelArtifact) []domain.Label {
	out := make([]domain.Label, len(artifacts))
	for i, a := range artifacts {
		typ := a.Type
		if typ == "" {
			typ = shipper.LabelParcel
		}
		format := a.Format
		if format == "" {
			format = shipper.LabelPDF
		}
		out[i] = domain.Label{
			TrackerCode: a.TrackerCode,
			Type:        typ,
			Format:      format,
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			State:       domain.StateActive,
		}
	}
	return out
}

// Decode returns the binary content of l.
func Decode(l *domain.Label) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(l.Content)
	if err != nil || len(data) == 0 {
		e := domain.ErrShipmentLabelCorrupt.
			Withf("label %d of shipment %d cannot be decoded", l.ID, l.ShipmentID).
			WithFields([]domain.FieldError{{Field: "tracker_code", Rule: "decodable", Param: l.TrackerCode}})
		if err != nil {
			e = e.WithCause(err)
		}
		return nil, e
	}
	return data, nil
}

// Save creates the labels of a shipment through repo. It is used inside the
// shipment transaction.
func Save(ctx context.Context, repo domain.LabelRepository, shipmentID int64, ls []domain.Label) error {
	for i := range ls {
		ls[i].ShipmentID = shipmentID
		if err := repo.Create(ctx, &ls[i]); err != nil {
			return fmt.Errorf("create label %s: %w", ls[i].TrackerCode, err)
		}
	}
	return nil
}

// Labels returns the active labels of a shipment. Every label must decode.
func (s *Store) Labels(ctx context.Context, shipmentID int64) ([]domain.Label, error) {
	ls, err := s.repo.ListByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if len(ls) == 0 {
		return nil, domain.ErrShipmentLabelMissing.Withf("shipment %d has no labels", shipmentID)
	}
	for i := range ls {
		if _, err := Decode(&ls[i]); err != nil {
			return nil, err
		}
	}
	return ls, nil
}

// Content returns one label with its decoded content.
func (s *Store) Content(ctx context.Context, shipmentID, labelID int64) (*domain.Label, []byte, error) {
	l, err := s.repo.Get(ctx, shipmentID, labelID)
	if err != nil {
		return nil, nil, err
	}
	data, err := Decode(l)
	if err != nil {
		return nil, nil, err
	}
	return l, data, nil
}

// MarkPrinted flags a label as printed.
func (s *Store) MarkPrinted(ctx context.Context, shipmentID, labelID int64) error {
	return s.repo.MarkPrinted(ctx, shipmentID, labelID)
}

// ContentType returns the MIME type for a label format.
func ContentType(f shipper.LabelFormat) string {
	switch f {
	case shipper.LabelPNG:
		return "image/png"
	case shipper.LabelZPL:
		return "application/x-zpl"
	default:
		return "application/pdf"
	}
}
