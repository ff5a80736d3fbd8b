package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/onnwee/freelamatch/internal/middleware"
	"github.com/onnwee/freelamatch/internal/shortlist"
)

// maxRequestBody bounds JSON request bodies.
const maxRequestBody = 1 << 20

// ShortlistService generates and reads shortlists.
type ShortlistService interface {
	Generate(ctx context.Context, jobID string) (*shortlist.Result, error)
	Get(ctx context.Context, jobID string) (*shortlist.Result, error)
}

// ShortlistEnqueuer schedules asynchronous shortlist generation.
type ShortlistEnqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// GenerateShortlistRequest is the body of POST /shortlists.
type GenerateShortlistRequest struct {
	JobID string `json:"jobId"`
}

// GenerateShortlistResponse is the success body of POST /shortlists.
type GenerateShortlistResponse struct {
	Success bool              `json:"success"`
	JobID   string            `json:"jobId"`
	Count   int               `json:"count"`
	Entries []shortlist.Entry `json:"entries"`
}

// EnqueueShortlistResponse is the body of POST /shortlists/async.
type EnqueueShortlistResponse struct {
	Queued bool   `json:"queued"`
	JobID  string `json:"jobId"`
}

// ShortlistHandlers serves the shortlist trigger and read-back endpoints.
type ShortlistHandlers struct {
	service  ShortlistService
	enqueuer ShortlistEnqueuer
}

// NewShortlistHandlers creates shortlist handlers. enqueuer may be nil, in
// which case the async endpoint answers 503.
func NewShortlistHandlers(service ShortlistService, enqueuer ShortlistEnqueuer) *ShortlistHandlers {
	return &ShortlistHandlers{service: service, enqueuer: enqueuer}
}

func decodeJobID(w http.ResponseWriter, r *http.Request, writeErr errorWriter) (string, bool) {
	var req GenerateShortlistRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeErr(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return "", false
	}
	jobID := strings.TrimSpace(req.JobID)
	if jobID == "" {
		writeErr(w, r, ErrCodeValidation, "jobId is required")
		return "", false
	}
	return jobID, true
}

// writeShortlistError maps pipeline errors onto an error body written by writeErr.
func writeShortlistError(w http.ResponseWriter, r *http.Request, writeErr errorWriter, jobID string, err error) {
	switch {
	case errors.Is(err, shortlist.ErrJobNotFound):
		writeErr(w, r, ErrCodeNotFound, "Job not found")
	case errors.Is(err, shortlist.ErrJobNotEmbedded):
		writeErr(w, r, ErrCodeConflict, "Job has no embedding yet")
	case errors.Is(err, shortlist.ErrUpstreamRetrieval):
		slog.ErrorContext(r.Context(), "shortlist retrieval failed", "job_id", jobID, "error", err)
		writeErr(w, r, ErrCodeUpstreamFailed, "Candidate retrieval failed")
	case errors.Is(err, shortlist.ErrPersistence):
		slog.ErrorContext(r.Context(), "shortlist persistence failed", "job_id", jobID, "error", err)
		writeErr(w, r, ErrCodePersistenceFailed, "Failed to store shortlist")
	default:
		slog.ErrorContext(r.Context(), "shortlist generation failed", "job_id", jobID, "error", err)
		writeErr(w, r, ErrCodeInternal, "Shortlist generation failed")
	}
}

// Generate handles POST /shortlists - rebuilds the shortlist of a job.
// Failures use the flat error body.
func (h *ShortlistHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	jobID, ok := decodeJobID(w, r, writeFlatCodedError)
	if !ok {
		return
	}

	result, err := h.service.Generate(r.Context(), jobID)
	if err != nil {
		writeShortlistError(w, r, writeFlatCodedError, jobID, err)
		return
	}

	writeJSON(w, r, http.StatusOK, GenerateShortlistResponse{
		Success: true,
		JobID:   result.JobID,
		Count:   result.Count,
		Entries: result.Entries,
	})
}

// Enqueue handles POST /shortlists/async - queues a rebuild and returns 202.
func (h *ShortlistHandlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusServiceUnavailable, ErrCodeInternal, "Asynchronous generation is not configured")
		return
	}

	jobID, ok := decodeJobID(w, r, writeCodedError)
	if !ok {
		return
	}

	if err := h.enqueuer.Enqueue(r.Context(), jobID); err != nil {
		slog.ErrorContext(r.Context(), "failed to enqueue shortlist request", "job_id", jobID, "error", err)
		writeCodedError(w, r, ErrCodeUpstreamFailed, "Failed to queue shortlist request")
		return
	}

	writeJSON(w, r, http.StatusAccepted, EnqueueShortlistResponse{Queued: true, JobID: jobID})
}

// Get handles GET /jobs/{jobId}/shortlist - returns the persisted shortlist.
func (h *ShortlistHandlers) Get(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(r.PathValue("jobId"))
	if jobID == "" {
		writeCodedError(w, r, ErrCodeValidation, "jobId is required")
		return
	}

	result, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		writeShortlistError(w, r, writeCodedError, jobID, err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}
