package pipeline

import (
	"strings"

	"licensescan/internal/license"
)

type DetectResult struct {
	IsLicense bool
	Score     float64
	Codes     int
	Reason    string
}

var headerMarkers = []string{"ANSI ", "AAMVA"}

// An issuer header plus one known element, or three known elements.
func DetectLicensePayload(text string) DetectResult {
	upper := strings.ToUpper(text)

	header := false
	for _, marker := range headerMarkers {
		if strings.Contains(upper, marker) {
			header = true
			break
		}
	}

	fields := license.Segment(text)
	codes := 0
	for _, code := range license.KnownCodes {
		if _, ok := fields[code]; ok {
			codes++
		}
	}

	score := float64(codes) / float64(len(license.KnownCodes))
	if header {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	res := DetectResult{Score: score, Codes: codes, Reason: "rules_negative"}
	switch {
	case codes >= 3:
		res.IsLicense = true
		res.Reason = "field_codes"
	case header && codes >= 1:
		res.IsLicense = true
		res.Reason = "aamva_header"
	}
	return res
}
