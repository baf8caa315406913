package roster

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	cfg, _ := config.Load()
	cfg.DashboardAPIBaseURL = "https://dashboard.test/api"
	cfg.DashboardAPIToken = "test"
	cfg.DashboardRateLimitRPS = 1000
	cfg.DashboardBreakerFailures = 2

	client := NewClient(cfg)
	client.httpClient = &http.Client{Transport: rt}
	client.backoff = func(int) time.Duration { return 0 }
	return client
}

func TestListStudentsWithRetry(t *testing.T) {
	attempt := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/students" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Fatalf("missing token")
		}
		attempt++
		if attempt == 1 {
			return jsonResponse(http.StatusInternalServerError, map[string]any{"detail": "boom"}), nil
		}
		return jsonResponse(http.StatusOK, []map[string]any{
			{"id": 1, "name": "Sarah Johnson", "license_number": "D1234567", "status": "Active", "lessons_completed": 8},
			{"id": 2, "name": "Michael Chen", "license_number": "D2345678", "status": "Active", "lessons_completed": 15},
		}), nil
	})

	students, err := client.ListStudents(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(students) != 2 || attempt != 2 {
		t.Fatalf("len=%d attempts=%d", len(students), attempt)
	}
	if students[1].ID == nil || *students[1].ID != 2 || students[1].LessonsCompleted != 15 {
		t.Fatalf("student=%+v", students[1])
	}
}

func TestCreateStudent(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost {
			t.Fatalf("method=%s", r.Method)
		}
		var body internal.StudentRecord
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.ID != nil {
			t.Fatalf("id must not be sent")
		}
		id := 7
		body.ID = &id
		return jsonResponse(http.StatusOK, body), nil
	})

	id := 99
	saved, err := client.CreateStudent(context.Background(), internal.StudentRecord{ID: &id, Name: "SAMEER SYED", LicenseNumber: "S96390260903311", Status: "Active"})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID == nil || *saved.ID != 7 || saved.Name != "SAMEER SYED" {
		t.Fatalf("saved=%+v", saved)
	}
}

func TestCreateStudentDuplicate(t *testing.T) {
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, map[string]any{"detail": "License number already exists"}), nil
	})

	_, err := client.CreateStudent(context.Background(), internal.StudentRecord{Name: "X", LicenseNumber: "D1"})
	if !errors.Is(err, storage.ErrDuplicateLicense) {
		t.Fatalf("err=%v", err)
	}
	// client errors never trip the breaker
	for i := 0; i < 3; i++ {
		_, err = client.CreateStudent(context.Background(), internal.StudentRecord{Name: "X", LicenseNumber: "D1"})
		if errors.Is(err, ErrUnavailable) {
			t.Fatal("breaker opened on duplicate")
		}
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	calls := 0
	client := testClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusServiceUnavailable, map[string]any{"detail": "down"}), nil
	})

	for i := 0; i < 2; i++ {
		if _, err := client.ListStudents(context.Background()); err == nil || errors.Is(err, ErrUnavailable) {
			t.Fatalf("call %d: err=%v", i, err)
		}
	}
	before := calls
	_, err := client.ListStudents(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err=%v", err)
	}
	if calls != before {
		t.Fatal("open breaker must not reach the transport")
	}
}
