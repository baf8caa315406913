package gmail

import (
	"encoding/base64"
	"testing"
)

func TestToFetched(t *testing.T) {
	raw := []byte("From: Desk <desk@example.com>\r\nSubject: Scans\r\nMessage-ID: <m1@example.com>\r\nDate: Mon, 12 Oct 2026 09:00:00 +0000\r\n\r\nDCSSYED\r\n")
	got := toFetched("g1", 0, raw)
	if got.MessageID != "<m1@example.com>" || got.Subject != "Scans" || got.ReceivedAt != "2026-10-12T09:00:00Z" {
		t.Fatalf("got=%+v", got)
	}

	bare := toFetched("g2", 1760259600000, []byte("\r\nbody"))
	if bare.MessageID != "g2" || bare.ReceivedAt != "2025-10-12T09:00:00Z" {
		t.Fatalf("bare=%+v", bare)
	}
}

func TestDecodeBase64URL(t *testing.T) {
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.URLEncoding} {
		out, err := decodeBase64URL(enc.EncodeToString([]byte("DAQ?>")))
		if err != nil || string(out) != "DAQ?>" {
			t.Fatalf("out=%q err=%v", out, err)
		}
	}
}
