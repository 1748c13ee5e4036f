package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"docrag/internal/adapter/fs"
	"docrag/internal/domain"
)

// Populator is the index side of the server.
type Populator interface {
	Populate(ctx context.Context, reset bool) domain.PopulateResult
	Count(ctx context.Context) (int, error)
	ProbeEmbedding(ctx context.Context) (int, error)
}

// QuestionAnswerer answers questions against the index.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) domain.Answer
}

// Config holds what the handlers need besides their collaborators.
type Config struct {
	DataDir        string
	MarkerFile     string
	Allowed        map[string]struct{}
	MaxUploadBytes int64
}

// Server exposes the pipeline over HTTP.
type Server struct {
	cfg      Config
	index    Populator
	answerer QuestionAnswerer
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Server and registers its routes.
func New(cfg Config, index Populator, answerer QuestionAnswerer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		cfg:      cfg,
		index:    index,
		answerer: answerer,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.healthHandler)
	s.mux.HandleFunc("GET /health/embedding", s.embeddingHandler)
	s.mux.HandleFunc("POST /upload", s.uploadHandler)
	s.mux.HandleFunc("POST /populate", s.populateHandler)
	s.mux.HandleFunc("POST /query", s.queryHandler)
	s.mux.HandleFunc("GET /documents", s.documentsHandler)
	s.mux.HandleFunc("GET /list-documents", s.documentsHandler)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// StatusFor maps an error category to an HTTP status.
func StatusFor(category domain.ErrorCategory) int {
	switch category {
	case "":
		return http.StatusOK
	case domain.CategoryValidation:
		return http.StatusBadRequest
	case domain.CategoryEmbedding:
		return http.StatusBadGateway
	case domain.CategoryGeneration:
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	count, err := s.index.Count(r.Context())
	if err != nil {
		s.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"error":    err.Error(),
			"category": domain.CategoryOf(err),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"documents": count,
	})
}

func (s *Server) embeddingHandler(w http.ResponseWriter, r *http.Request) {
	n, err := s.index.ProbeEmbedding(r.Context())
	if err != nil {
		category := domain.CategoryOf(err)
		writeJSON(w, StatusFor(category), map[string]any{
			"embedding_works": false,
			"error":           err.Error(),
			"category":        category,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"embedding_works":  true,
		"embedding_length": n,
	})
}

func (s *Server) uploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	// Every file is checked before any is written.
	names := make([]string, len(headers))
	for i, h := range headers {
		name, err := fs.SafeName(h.Filename)
		if err == nil {
			err = fs.ValidateExtension(name, s.cfg.Allowed)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		names[i] = name
	}

	if err := fs.EnsureDataDir(s.cfg.DataDir, s.cfg.MarkerFile); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sources := make([]fs.Source, len(headers))
	for i, h := range headers {
		sources[i] = fs.Source{Name: names[i], Open: func() (io.ReadCloser, error) { return h.Open() }}
	}
	if err := fs.SaveAll(s.cfg.DataDir, sources); err != nil {
		s.logger.Error("upload failed", "files", names, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for i, h := range headers {
		s.logger.Info("file uploaded", "file", names[i], "bytes", h.Size)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("%d files uploaded successfully", len(names)),
		"files":   names,
	})
}

type populateRequest struct {
	Reset bool `json:"reset"`
}

func (s *Server) populateHandler(w http.ResponseWriter, r *http.Request) {
	var req populateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	res := s.index.Populate(r.Context(), req.Reset)
	if !res.Success {
		status := http.StatusBadRequest
		if res.Category != "" {
			status = StatusFor(res.Category)
		}
		writeJSON(w, status, map[string]any{
			"success":  false,
			"message":  res.Reason,
			"stage":    res.Stage,
			"category": res.Category,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"message":        fmt.Sprintf("Database populated successfully with %d chunks", res.ChunkCount),
		"document_count": res.DocumentCount,
		"chunk_count":    res.ChunkCount,
	})
}

type queryRequest struct {
	Question string `json:"question"`
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}

	answer := s.answerer.Answer(r.Context(), req.Question)
	writeJSON(w, StatusFor(answer.Category), map[string]any{
		"success":  !answer.Failed(),
		"response": answer.Response,
		"sources":  answer.Sources,
		"category": answer.Category,
	})
}

func (s *Server) documentsHandler(w http.ResponseWriter, r *http.Request) {
	files, err := fs.ListDocuments(s.cfg.DataDir, s.cfg.MarkerFile)
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}
