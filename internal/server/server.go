package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"licensescan/internal"
	"licensescan/internal/config"
	"licensescan/internal/license"
	"licensescan/internal/pipeline"
	"licensescan/internal/storage"
)

const maxBodyBytes = 1 << 20

type Server struct {
	db   *storage.DB
	cfg  config.Config
	proc *pipeline.ProcessingService
}

func New(db *storage.DB, cfg config.Config) *Server {
	return &Server{db: db, cfg: cfg, proc: pipeline.NewProcessingService(db, cfg)}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(withLogging)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/students", s.listStudents)
		r.Post("/students", s.createStudent)
		r.Post("/students/parse-barcode", s.parseBarcode)
		r.Get("/scans", s.listScans)
		r.Post("/scans", s.createScan)
		r.Get("/scans/{id}", s.getScan)
		r.Post("/scans/{id}/prefill", s.prefillScan)
	})
	return r
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type barcodeRequest struct {
	BarcodeText string `json:"barcode_text"`
	Source      string `json:"source"`
}

func (s *Server) parseBarcode(w http.ResponseWriter, r *http.Request) {
	var req barcodeRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	jsonResponse(w, http.StatusOK, license.Decode(req.BarcodeText))
}

func (s *Server) listStudents(w http.ResponseWriter, r *http.Request) {
	students, err := s.db.ListStudents()
	if err != nil {
		slog.Error("list students failed", "error", err)
		errorResponse(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	if students == nil {
		students = []internal.StudentRecord{}
	}
	jsonResponse(w, http.StatusOK, students)
}

func (s *Server) createStudent(w http.ResponseWriter, r *http.Request) {
	var student internal.StudentRecord
	if err := parseJSONBody(w, r, &student); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if student.Name == "" {
		errorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	student.ID = nil
	saved, err := s.db.InsertStudent(student)
	if errors.Is(err, storage.ErrDuplicateLicense) {
		errorResponse(w, http.StatusBadRequest, "License number already exists")
		return
	}
	if err != nil {
		slog.Error("create student failed", "error", err)
		errorResponse(w, http.StatusInternalServerError, "failed to create student")
		return
	}
	jsonResponse(w, http.StatusCreated, saved)
}

func (s *Server) createScan(w http.ResponseWriter, r *http.Request) {
	var req barcodeRequest
	if err := parseJSONBody(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.BarcodeText == "" {
		errorResponse(w, http.StatusBadRequest, "barcode_text is required")
		return
	}

	source := internal.SourceAPI
	if req.Source != "" {
		source = internal.ScanSource(req.Source)
	}

	scan, err := s.proc.ProcessText(r.Context(), source, "", req.BarcodeText)
	if err != nil {
		slog.Error("process scan failed", "error", err)
		errorResponse(w, http.StatusInternalServerError, "failed to process scan")
		return
	}
	jsonResponse(w, http.StatusCreated, scan)
}

func (s *Server) getScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.loadScan(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, scan)
}

func (s *Server) listScans(w http.ResponseWriter, r *http.Request) {
	status := internal.ScanStatus(r.URL.Query().Get("status"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	var scans []internal.ScanRow
	if status == "" {
		scans, err = s.db.GetExportRows("")
		if len(scans) > limit {
			scans = scans[:limit]
		}
	} else {
		scans, err = s.db.ListScansByStatus(status, limit)
	}
	if err != nil {
		slog.Error("list scans failed", "error", err)
		errorResponse(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if scans == nil {
		scans = []internal.ScanRow{}
	}
	jsonResponse(w, http.StatusOK, scans)
}

func (s *Server) prefillScan(w http.ResponseWriter, r *http.Request) {
	scan, ok := s.loadScan(w, r)
	if !ok {
		return
	}
	var draft internal.StudentRecord
	if err := parseJSONBody(w, r, &draft); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	jsonResponse(w, http.StatusOK, license.Prefill(draft, scan.Student))
}

func (s *Server) loadScan(w http.ResponseWriter, r *http.Request) (internal.ScanRow, bool) {
	scan, err := s.db.GetScan(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		errorResponse(w, http.StatusNotFound, "scan not found")
		return internal.ScanRow{}, false
	}
	if err != nil {
		slog.Error("load scan failed", "error", err)
		errorResponse(w, http.StatusInternalServerError, "failed to load scan")
		return internal.ScanRow{}, false
	}
	return scan, true
}
