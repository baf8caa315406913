package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/storage"
)

const lastSyncKey = "roster.last_sync"

type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
}

type SubmitResult struct {
	Submitted  int
	Duplicates int
	Failed     int
}

func NewSyncService(db *storage.DB, cfg config.Config) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg}
}

func (s *SyncService) PullRoster(ctx context.Context) (int, error) {
	students, err := s.client.ListStudents(ctx)
	if err != nil {
		return 0, fmt.Errorf("pull roster: %w", err)
	}
	if err := s.db.UpsertStudents(students); err != nil {
		return 0, err
	}
	_ = s.db.SetMetadata(lastSyncKey, time.Now().UTC().Format(time.RFC3339))
	return len(students), nil
}

func (s *SyncService) LastSync() (time.Time, bool) {
	v, err := s.db.GetMetadata(lastSyncKey)
	if err != nil || v == nil {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func (s *SyncService) SubmitPending(ctx context.Context, limit int) (SubmitResult, error) {
	var res SubmitResult
	scans, err := s.db.ListScansByStatus(internal.ScanReady, limit)
	if err != nil {
		return res, err
	}

	for _, scan := range scans {
		saved, err := s.client.CreateStudent(ctx, scan.Student)
		switch {
		case err == nil:
			if err := s.db.UpdateScanStatus(scan.ID, internal.ScanSubmitted, saved.ID); err != nil {
				return res, err
			}
			if saved.ID != nil {
				if err := s.db.UpsertStudents([]internal.StudentRecord{saved}); err != nil {
					return res, err
				}
			}
			res.Submitted++
		case errors.Is(err, storage.ErrDuplicateLicense):
			if err := s.db.UpdateScanStatus(scan.ID, internal.ScanDuplicate, nil); err != nil {
				return res, err
			}
			res.Duplicates++
		case errors.Is(err, ErrUnavailable), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return res, err
		default:
			slog.Error("submit scan failed", "scan", scan.ID, "error", err)
			res.Failed++
		}
	}

	return res, nil
}
