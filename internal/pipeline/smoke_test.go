package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/storage"
)

func TestSmokeEmailToXLSX(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.UpsertStudents(testRoster()); err != nil {
		t.Fatal(err)
	}

	rawBlob, err := os.ReadFile(filepath.Join("testdata", "license_email.eml"))
	if err != nil {
		t.Fatal(err)
	}
	rawPath := filepath.Join(tmp, "fixture.eml")
	if err := os.WriteFile(rawPath, rawBlob, 0o644); err != nil {
		t.Fatal(err)
	}

	email, err := db.UpsertEmail("imap", "<intake-1@example.com>", "New students", "desk@example.com", "2026-10-12T09:00:00Z", "hash", rawPath, "fetched")
	if err != nil {
		t.Fatal(err)
	}

	cfg, _ := config.Load()
	proc := NewProcessingService(db, cfg)
	res, err := proc.ProcessEmail(context.Background(), email)
	if err != nil {
		t.Fatal(err)
	}
	if res.Processed != 2 {
		t.Fatalf("processed=%d counts=%v", res.Processed, res.Counts)
	}

	rows, err := db.GetExportRows("")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	// SYED has a new license number; JOHNSON is on the roster.
	if rows[0].Student.Name != "ALLAHBAKSH SAMEER SYED" || rows[0].Status == internal.ScanKnown {
		t.Fatalf("first row=%+v", rows[0].Student)
	}
	if rows[1].Status != internal.ScanKnown || rows[1].Match.Student == nil || *rows[1].Match.Student.ID != 1 {
		t.Fatalf("second row=%+v", rows[1])
	}

	out := filepath.Join(tmp, "result.xlsx")
	if err := ExportScansToXLSX(rows, out); err != nil {
		t.Fatal(err)
	}
	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	sheetRows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatal(err)
	}
	if len(sheetRows) != 3 || sheetRows[0][0] != "scan_id" {
		t.Fatalf("sheet=%v", sheetRows)
	}
}

func TestProcessTextRejectsNonLicense(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg, _ := config.Load()
	proc := NewProcessingService(db, cfg)

	scan, err := proc.ProcessText(context.Background(), internal.SourceScanner, "", "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if scan.Status != internal.ScanRejected || scan.ID == "" {
		t.Fatalf("scan=%+v", scan)
	}

	scan, err = proc.ProcessText(context.Background(), internal.SourceScanner, "", payloadSyed)
	if err != nil {
		t.Fatal(err)
	}
	if scan.Status != internal.ScanReady || scan.LicenseRaw.DOB != "1990-11-12" {
		t.Fatalf("scan=%+v", scan)
	}
}
