package pipeline

import (
	"licensescan/internal/license"
)

type DecodedPayload struct {
	Payload
	Detect DetectResult
	Fields license.FieldMap
	Result license.Result
}

func DecodePayload(p Payload) DecodedPayload {
	fields := license.Segment(p.Text)
	return DecodedPayload{
		Payload: p,
		Detect:  DetectLicensePayload(p.Text),
		Fields:  fields,
		Result:  license.Normalize(fields),
	}
}

func DecodePayloads(payloads []Payload) []DecodedPayload {
	out := make([]DecodedPayload, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, DecodePayload(p))
	}
	return out
}
