package shipper

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodeDocuments decodes base64 label documents into artifacts. A response
// without documents yields ErrNoLabels.
func DecodeDocuments(carrier string, docs []Document) ([]LabelArtifact, error) {
	if len(docs) == 0 {
		return nil, NewShipperError(carrier, CodeBadResponse, "response carries no label").WithCause(ErrNoLabels)
	}
	out := make([]LabelArtifact, 0, len(docs))
	for _, d := range docs {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(d.Encoded))
		if err != nil {
			return nil, NewShipperError(carrier, CodeLabelDecode, fmt.Sprintf("label %s", d.TrackerCode)).WithCause(err)
		}
		typ := d.Type
		if typ == "" {
			typ = LabelParcel
		}
		format := d.Format
		if format == "" {
			format = LabelPDF
		}
		out = append(out, LabelArtifact{
			TrackerCode: d.TrackerCode,
			Type:        typ,
			Format:      format,
			Data:        data,
		})
	}
	return out, nil
}
