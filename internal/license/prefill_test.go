package license

import (
	"testing"

	"licensescan/internal"
)

func TestPrefillKeepsUserFields(t *testing.T) {
	draft := internal.StudentRecord{Name: "Sameer Syed", Phone: "555-0100"}
	scanned := Decode(ontarioSample).Student

	got := Prefill(draft, scanned)
	if got.Name != "Sameer Syed" {
		t.Fatalf("name overwritten: %q", got.Name)
	}
	if got.Phone != "555-0100" {
		t.Fatalf("phone=%q", got.Phone)
	}
	if got.LicenseNumber != "S96390260903311" || got.DateOfBirth != "1990-11-12" {
		t.Fatalf("scanned fields missing: %+v", got)
	}
	if got.Address != "1695 RENNIE ST, OSHAWA ON L1K0N8" {
		t.Fatalf("address=%q", got.Address)
	}
	if got.Status != "Active" {
		t.Fatalf("status=%q", got.Status)
	}
}

func TestPrefillEmptyScanLeavesDraft(t *testing.T) {
	draft := internal.StudentRecord{Name: "A", Address: "B"}
	got := Prefill(draft, internal.StudentRecord{})
	if got.Name != "A" || got.Address != "B" || got.LicenseNumber != "" {
		t.Fatalf("got %+v", got)
	}
}
