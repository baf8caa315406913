package pipeline

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/storage"
	"licensescan/internal/util"
)

type ProcessingService struct {
	db  *storage.DB
	cfg config.Config
}

func NewProcessingService(db *storage.DB, cfg config.Config) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg}
}

type ProcessResult struct {
	EmailID   int
	Processed int
	Counts    map[string]int
}

func (s *ProcessingService) matcher() (*Matcher, error) {
	students, err := s.db.ListRosterStudents()
	if err != nil {
		return nil, err
	}
	return NewMatcher(s.cfg, students), nil
}

func (s *ProcessingService) ProcessText(ctx context.Context, source internal.ScanSource, ref, text string) (internal.ScanRow, error) {
	if err := ctx.Err(); err != nil {
		return internal.ScanRow{}, err
	}
	start := time.Now()
	m, err := s.matcher()
	if err != nil {
		return internal.ScanRow{}, err
	}

	scan, err := s.storeScan(m, DecodePayload(Payload{Source: source, Ref: ref, Text: text}), nil)
	if err != nil {
		return internal.ScanRow{}, err
	}
	_ = s.db.InsertRun(newTraceID(), nil,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"payloads": 1, string(scan.Status): 1})
	return scan, nil
}

func (s *ProcessingService) storeScan(m *Matcher, decoded DecodedPayload, emailID *int) (internal.ScanRow, error) {
	scan := internal.ScanRow{
		ID:         uuid.NewString(),
		Source:     decoded.Source,
		Ref:        decoded.Ref,
		EmailID:    emailID,
		RawText:    decoded.Text,
		Fields:     decoded.Fields,
		Student:    decoded.Result.Student,
		LicenseRaw: decoded.Result.LicenseRaw,
		Match:      internal.MatchResult{Status: internal.MatchNotFound, Reason: internal.ReasonNone, Candidates: []internal.MatchCandidate{}},
	}

	if decoded.Detect.IsLicense {
		scan.Match = m.Match(scan.Student)
		scan.Status = StatusForMatch(scan.Match.Status)
	} else {
		scan.Status = internal.ScanRejected
	}

	saved, err := s.db.InsertScan(scan)
	if err != nil {
		return internal.ScanRow{}, err
	}
	slog.Info("scan stored",
		"id", saved.ID,
		"source", saved.Source,
		"status", saved.Status,
		"match", saved.Match.Status,
		"confidence", saved.Match.Confidence,
	)
	return saved, nil
}

func StatusForMatch(status internal.MatchStatus) internal.ScanStatus {
	switch status {
	case internal.MatchOK:
		return internal.ScanKnown
	case internal.MatchReview:
		return internal.ScanReview
	default:
		return internal.ScanReady
	}
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedScans := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, processedScans, err
		}
		processedEmails++
		processedScans += res.Processed
	}
	return processedEmails, processedScans, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	extracted, err := ExtractPayloadsFromEmailRaw(raw)
	if err != nil {
		return ProcessResult{}, err
	}
	if err := s.db.ClearEmailScans(email.ID); err != nil {
		return ProcessResult{}, err
	}

	emailID := email.ID
	counts := map[string]int{"payloads": len(extracted.Payloads)}
	if len(extracted.Payloads) == 0 {
		_ = s.db.UpdateEmailStatus(email.ID, "skipped")
		_ = s.db.InsertRun(newTraceID(), &emailID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, counts)
		slog.Info("email skipped", "email", email.ID, "subject", util.FirstNonEmpty(extracted.Subject, email.Subject))
		return ProcessResult{EmailID: email.ID, Counts: counts}, nil
	}

	m, err := s.matcher()
	if err != nil {
		return ProcessResult{}, err
	}

	processed := 0
	for _, decoded := range DecodePayloads(extracted.Payloads) {
		if err := ctx.Err(); err != nil {
			return ProcessResult{EmailID: email.ID, Processed: processed, Counts: counts}, err
		}
		scan, err := s.storeScan(m, decoded, &emailID)
		if err != nil {
			return ProcessResult{}, err
		}
		counts[string(scan.Status)]++
		processed++
	}

	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(newTraceID(), &emailID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, counts)

	return ProcessResult{EmailID: email.ID, Processed: processed, Counts: counts}, nil
}

func newTraceID() string {
	return uuid.NewString()
}
