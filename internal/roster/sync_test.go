package roster

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"licensescan/internal"
	"licensescan/internal/storage"
)

func TestSubmitPending(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, scan := range []internal.ScanRow{
		{ID: "new", Source: internal.SourceScanner, Status: internal.ScanReady, Student: internal.StudentRecord{Name: "SAMEER SYED", LicenseNumber: "S1", Status: "Active"}},
		{ID: "dup", Source: internal.SourceScanner, Status: internal.ScanReady, Student: internal.StudentRecord{Name: "SARAH JOHNSON", LicenseNumber: "D1234567", Status: "Active"}},
		{ID: "held", Source: internal.SourceScanner, Status: internal.ScanReview, Student: internal.StudentRecord{Name: "HELD"}},
	} {
		if _, err := db.InsertScan(scan); err != nil {
			t.Fatal(err)
		}
	}

	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		var body internal.StudentRecord
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.LicenseNumber == "D1234567" {
			return jsonResponse(http.StatusBadRequest, map[string]any{"detail": "License number already exists"}), nil
		}
		id := 10
		body.ID = &id
		return jsonResponse(http.StatusOK, body), nil
	})
	svc := &SyncService{db: db, client: client}

	res, err := svc.SubmitPending(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Submitted != 1 || res.Duplicates != 1 || res.Failed != 0 {
		t.Fatalf("res=%+v", res)
	}

	got, err := db.GetScan("new")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != internal.ScanSubmitted || got.RemoteStudentID == nil || *got.RemoteStudentID != 10 {
		t.Fatalf("new=%+v", got)
	}
	dup, _ := db.GetScan("dup")
	if dup.Status != internal.ScanDuplicate {
		t.Fatalf("dup=%s", dup.Status)
	}
	held, _ := db.GetScan("held")
	if held.Status != internal.ScanReview {
		t.Fatalf("held=%s", held.Status)
	}

	local, err := db.GetRosterStudentByLicense("S1")
	if err != nil || local == nil || *local.ID != 10 {
		t.Fatalf("local=%+v err=%v", local, err)
	}
}

func TestPullRoster(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, []map[string]any{{"id": 3, "name": "Michael Chen", "license_number": "D2345678"}}), nil
	})
	svc := &SyncService{db: db, client: client}

	n, err := svc.PullRoster(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("n=%d err=%v", n, err)
	}
	if _, ok := svc.LastSync(); !ok {
		t.Fatal("last sync not recorded")
	}
	students, _ := db.ListRosterStudents()
	if len(students) != 1 || students[0].Name != "Michael Chen" {
		t.Fatalf("students=%+v", students)
	}
}
