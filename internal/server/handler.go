// Package server exposes the QA service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"docqa/internal/analytics"
	"docqa/internal/ingestion"
	"docqa/internal/ingestion/validator"
	"docqa/internal/rag"
	"docqa/internal/rag/agent"
	apperrors "docqa/pkg/errors"
	"docqa/pkg/logger"
	"docqa/pkg/tracing"
)

// Handler serves the versioned QA API. The aggregator is optional; without
// it the analytics endpoint reports unavailable.
type Handler struct {
	agent      *agent.Agent
	ingest     *ingestion.Service
	aggregator *analytics.Aggregator
	logger     *slog.Logger
}

func NewHandler(qaAgent *agent.Agent, ingest *ingestion.Service, aggregator *analytics.Aggregator) *Handler {
	return &Handler{
		agent:      qaAgent,
		ingest:     ingest,
		aggregator: aggregator,
		logger:     slog.Default().With("component", "http-handler"),
	}
}

// RegisterRoutes attaches all API routes to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query", h.handleQuery)
	mux.HandleFunc("POST /api/v1/documents", h.handleIngest)
	mux.HandleFunc("GET /api/v1/documents", h.handleListDocuments)
	mux.HandleFunc("DELETE /api/v1/documents", h.handleReset)
	mux.HandleFunc("POST /api/v1/memory/clear", h.handleMemoryClear)
	mux.HandleFunc("GET /api/v1/memory/info", h.handleMemoryInfo)
	mux.HandleFunc("GET /api/v1/analytics", h.handleAnalytics)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req rag.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		h.writeError(w, r, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "question is required"))
		return
	}

	ctx, span := tracing.StartSpan(r.Context(), "query", logger.RequestIDFromContext(r.Context()))
	result := h.agent.Process(ctx, &req)
	span.End()
	span.Log()

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestion.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid request body: %v", err))
		return
	}

	result, err := h.ingest.Ingest(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.ingest.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	chunkCount, err := h.ingest.ChunkCount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents":   docs,
		"count":       len(docs),
		"chunk_count": chunkCount,
	})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := h.ingest.Reset(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

type memoryRequest struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleMemoryClear(w http.ResponseWriter, r *http.Request) {
	var req memoryRequest
	if r.Body != nil {
		// missing or empty body falls back to the default session
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	h.agent.Sessions().Clear(req.SessionID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (h *Handler) handleMemoryInfo(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	window, ok := h.agent.Sessions().Peek(sessionID)
	if !ok {
		h.writeError(w, r, apperrors.New(apperrors.ErrSessionNotFound, http.StatusNotFound, "no memory for session"))
		return
	}
	h.writeJSON(w, http.StatusOK, window.Stats())
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if h.aggregator == nil {
		h.writeError(w, r, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "analytics not configured"))
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.Stats())
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	resp := errorResponse{Error: err.Error()}

	var verr *validator.ValidationError
	if errors.As(err, &verr) {
		status = http.StatusBadRequest
		resp.Field = verr.Field
		resp.Error = verr.Message
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"request_id", logger.RequestIDFromContext(r.Context()),
			"error", err,
		)
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
