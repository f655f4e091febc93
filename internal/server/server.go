// Package server exposes the HTTP API: public upload and image fetch,
// health and stats, and the token-guarded review endpoints.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"inkwell/internal/admintoken"
	"inkwell/internal/app"
	"inkwell/internal/util"
	"inkwell/pkg/auth"
	"inkwell/pkg/filestore"
)

// Limiter throttles uploads per client key.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	App   *app.App
	Files *filestore.Areas
	Guard *admintoken.Guard

	// Limiter is optional; nil disables upload throttling.
	Limiter Limiter
	Trusted *util.TrustedProxies

	// Reviewer login is optional; empty username disables /admin/login.
	ReviewerUsername     string
	ReviewerPasswordHash string
}

// Server exposes HTTP endpoints for the sample collection service.
type Server struct {
	app     *app.App
	files   *filestore.Areas
	guard   *admintoken.Guard
	limiter Limiter
	trusted *util.TrustedProxies

	reviewerUsername     string
	reviewerPasswordHash string

	mux *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app required")
	}
	if cfg.Files == nil {
		return nil, errors.New("file areas required")
	}
	if cfg.Guard == nil {
		return nil, errors.New("admin guard required")
	}
	s := &Server{
		app:                  cfg.App,
		files:                cfg.Files,
		guard:                cfg.Guard,
		limiter:              cfg.Limiter,
		trusted:              cfg.Trusted,
		reviewerUsername:     strings.TrimSpace(cfg.ReviewerUsername),
		reviewerPasswordHash: cfg.ReviewerPasswordHash,
		mux:                  http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("inkwell", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/stats", s.handleStats)
	s.mux.HandleFunc("/upload", s.handleUpload)
	s.mux.HandleFunc("/images/", s.handleImage)
	s.mux.HandleFunc("/approved/", s.handleImage)

	s.mux.HandleFunc("/admin/login", s.handleLogin)
	s.mux.Handle("/admin/uploads", s.withAdmin(s.handleUploads))
	s.mux.Handle("/admin/uploads/", s.withAdmin(s.handleUploadByID))
	s.mux.Handle("/admin/approve", s.withAdmin(s.handleApprove))
	s.mux.Handle("/admin/reject", s.withAdmin(s.handleReject))
	s.mux.Handle("/admin/readiness", s.withAdmin(s.handleReadiness))
	s.mux.Handle("/admin/report", s.withAdmin(s.handleReport))
	s.mux.Handle("/admin/export", s.withAdmin(s.handleExport))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"ocr_enabled": s.app.OCREnabled(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.limiter != nil && !s.limiter.Allow(util.ClientIP(r, s.trusted)) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.app.MaxUploadBytes())
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	result, err := s.app.Ingest(r.Context(), app.IngestRequest{
		Content:      content,
		OrigName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		ProvidedText: r.FormValue("text"),
	})
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	message := "Upload successful"
	if result.Duplicate {
		message = "File already exists in system"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"upload_id": result.ID,
		"predicted": result.Predicted,
		"message":   message,
	})
}

// handleImage serves stored images from either area. The URL prefix picks
// the area; filestore strips any path components from the name.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	var path string
	switch {
	case strings.HasPrefix(r.URL.Path, "/images/"):
		path = s.files.PendingPath(strings.TrimPrefix(r.URL.Path, "/images/"))
	case strings.HasPrefix(r.URL.Path, "/approved/"):
		path = s.files.ApprovedPath(strings.TrimPrefix(r.URL.Path, "/approved/"))
	default:
		notFound(w)
		return
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		notFound(w)
		return
	}
	http.ServeFile(w, r, path)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.reviewerUsername == "" {
		writeError(w, http.StatusNotFound, "reviewer login not configured")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username != s.reviewerUsername || !auth.CheckPassword(req.Password, s.reviewerPasswordHash) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := s.guard.Issue(req.Username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to issue session token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) withAdmin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.guard.Authorize(r); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	samples, err := s.app.ListSamples()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": samples,
		"count": len(samples),
	})
}

// /admin/uploads/{id}
func (s *Server) handleUploadByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/admin/uploads/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w)
		return
	}
	switch r.Method {
	case http.MethodGet:
		sample, err := s.app.GetSample(id)
		if err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sample)
	case http.MethodDelete:
		if err := s.app.Remove(id); err != nil {
			s.writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

type approveRequest struct {
	ID            string `json:"id"`
	CorrectedText string `json:"corrected_text"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req approveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.Approve(req.ID, req.CorrectedText); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved", "id": req.ID})
}

type rejectRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req rejectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.Reject(req.ID, req.Reason); err != nil {
		s.writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected", "id": req.ID})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	readiness, err := s.app.Readiness()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, readiness)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	content, path, err := s.app.WriteReport()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"report": content,
		"path":   path,
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	result, err := s.app.ExportTrainingData(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeAppError maps core-service errors to HTTP statuses.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case app.IsNotFound(err):
		writeError(w, http.StatusNotFound, "upload not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}
