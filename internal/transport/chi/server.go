// Package chi exposes the document and chat API over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docchat/internal/domain"
	"github.com/kailas-cloud/docchat/internal/extract"
	healthuc "github.com/kailas-cloud/docchat/internal/usecase/health"
)

// Error codes returned in JSON error responses.
const (
	codeBadRequest        = "bad_request"
	codeValidationFailed  = "validation_failed"
	codeDocumentNotFound  = "document_not_found"
	codePayloadTooLarge   = "payload_too_large"
	codeConflict          = "conflict"
	codeRateLimited       = "rate_limited"
	codeEmbeddingProvider = "embedding_provider_error"
	codeGenerationFailed  = "generation_failed"
	codeInternalError     = "internal_error"
)

// MetadataStore is the document metadata contract the API consumes.
type MetadataStore interface {
	Create(ctx context.Context, doc domain.Document) error
	Get(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context) ([]domain.Document, error)
}

// BlobStore persists raw uploaded bytes.
type BlobStore interface {
	Save(documentID string, content []byte) (string, error)
}

// JobQueue accepts ingestion jobs.
type JobQueue interface {
	Enqueue(ctx context.Context, documentID string) error
}

// Answerer responds to chat queries.
type Answerer interface {
	Answer(ctx context.Context, query string) (domain.Answer, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the HTTP API.
type Server struct {
	meta           MetadataStore
	blobs          BlobStore
	jobs           JobQueue
	chat           Answerer
	health         HealthService
	logger         *zap.Logger
	maxUploadBytes int64
	newID          func() string
	now            func() time.Time
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	meta MetadataStore,
	blobs BlobStore,
	jobs JobQueue,
	chat Answerer,
	health HealthService,
	maxUploadBytes int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		meta:           meta,
		blobs:          blobs,
		jobs:           jobs,
		chat:           chat,
		health:         health,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
		newID:          uuid.NewString,
		now:            time.Now,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrInvalidStatusTransition, http.StatusConflict, codeConflict),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProvider),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, codeGenerationFailed),
	}
	return s
}

// Routes registers all API routes on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/documents", s.UploadDocument)
	r.Get("/documents", s.ListDocuments)
	r.Get("/documents/{id}", s.GetDocument)
	r.Post("/documents/{id}/ingest", s.ReingestDocument)
	r.Post("/chat", s.Chat)
	r.Get("/healthz", s.Liveness)
	r.Get("/readyz", s.Readiness)
	r.Get("/metrics", s.Metrics)
}

// documentResponse is the wire shape of a document record.
type documentResponse struct {
	ID        string `json:"id"`
	FileName  string `json:"file_name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

func documentToResponse(doc domain.Document) documentResponse {
	return documentResponse{
		ID:        doc.ID,
		FileName:  doc.FileName,
		Status:    string(doc.Status),
		Error:     doc.Error,
		CreatedAt: doc.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// UploadDocument handles POST /documents: store bytes, create the record,
// queue ingestion, answer 202 immediately.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	if fileName == "" || fileName == "." {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "file name is required")
		return
	}
	if ext := filepath.Ext(fileName); !extract.SupportedExt(ext) {
		writeError(w, http.StatusBadRequest, codeValidationFailed,
			fmt.Sprintf("unsupported file type %q", ext))
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, codePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "failed to read upload")
		return
	}
	if len(content) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "uploaded file is empty")
		return
	}

	id := s.newID()
	path, err := s.blobs.Save(id, content)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	doc, err := domain.NewDocument(id, fileName, path, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
		return
	}
	if err := s.meta.Create(r.Context(), doc); err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := s.jobs.Enqueue(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", "/api/v1/documents/"+id)
	writeJSON(w, http.StatusAccepted, documentToResponse(doc))
}

// GetDocument handles GET /documents/{id}: the status polling endpoint.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.meta.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(doc))
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.meta.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i, d := range docs {
		items[i] = documentToResponse(d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// ReingestDocument handles POST /documents/{id}/ingest: queues the document
// again; its previous vectors are replaced when the worker gets to it.
func (s *Server) ReingestDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.meta.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	if err := s.jobs.Enqueue(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, documentToResponse(doc))
}

// chatRequest is the wire shape of a chat query.
type chatRequest struct {
	Query string `json:"query"`
}

// chatResponse is the wire shape of a chat answer.
type chatResponse struct {
	Answer          string           `json:"answer"`
	SourceDocuments []sourceDocument `json:"source_documents"`
}

type sourceDocument struct {
	Source         string `json:"source"`
	ContentPreview string `json:"content_preview"`
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "query is required")
		return
	}

	answer, err := s.chat.Answer(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	sources := make([]sourceDocument, len(answer.Sources))
	for i, src := range answer.Sources {
		sources[i] = sourceDocument{Source: src.Source, ContentPreview: src.Preview}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Answer:          answer.Text,
		SourceDocuments: sources,
	})
}

// Liveness handles GET /healthz.
func (s *Server) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /readyz.
func (s *Server) Readiness(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// errorResponse is the wire shape of all error replies.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrInvalidStatusTransition,
		domain.ErrRateLimited,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
