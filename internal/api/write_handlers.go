package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/onnwee/freelamatch/internal/guard"
	"github.com/onnwee/freelamatch/internal/middleware"
	"github.com/onnwee/freelamatch/internal/writes"
)

// Messages returned when a user exhausts a quota.
const (
	ProposalLimitMessage = "Limite de propostas diário atingido."
	MessageLimitMessage  = "Limite de mensagens por minuto atingido."
)

// WriteGuard admits or rejects user writes.
type WriteGuard interface {
	AllowProposal(ctx context.Context, userID string) error
	AllowMessage(ctx context.Context, threadID, userID string) error
}

// CreateProposalRequest is the body of POST /proposals.
type CreateProposalRequest struct {
	JobID    string   `json:"jobId"`
	Message  string   `json:"message"`
	Price    *float64 `json:"price,omitempty"`
	Duration *string  `json:"duration,omitempty"`
}

// SendMessageRequest is the body of POST /messages.
type SendMessageRequest struct {
	ThreadID string `json:"threadId"`
	Text     string `json:"text"`
}

// WriteHandlers serves the guarded proposal and message endpoints.
// Both expect middleware.RequireAuth in front of them.
type WriteHandlers struct {
	guard WriteGuard
	store writes.Store
}

// NewWriteHandlers creates write handlers.
func NewWriteHandlers(g WriteGuard, store writes.Store) *WriteHandlers {
	return &WriteHandlers{guard: g, store: store}
}

// CreateProposal handles POST /proposals.
func (h *WriteHandlers) CreateProposal(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeCodedError(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	// The daily quota is charged before the body is read.
	if err := h.guard.AllowProposal(r.Context(), userID); err != nil {
		writeGuardError(w, r, err, ProposalLimitMessage)
		return
	}

	var req CreateProposalRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeCodedError(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}

	created, err := h.store.CreateProposal(r.Context(), writes.Proposal{
		JobID:        req.JobID,
		FreelancerID: userID,
		Message:      req.Message,
		Price:        req.Price,
		Duration:     req.Duration,
	})
	if err != nil {
		writeStoreError(w, r, err, "proposal")
		return
	}

	writeJSON(w, r, http.StatusCreated, created)
}

// SendMessage handles POST /messages.
func (h *WriteHandlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeCodedError(w, r, ErrCodeAuthFailed, "Authentication required")
		return
	}

	// The message quota is keyed by thread, so the body is needed first.
	var req SendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeCodedError(w, r, ErrCodeBadRequest, "Invalid JSON in request body")
		return
	}
	if req.ThreadID == "" {
		writeCodedError(w, r, ErrCodeValidation, "threadId is required")
		return
	}

	if err := h.guard.AllowMessage(r.Context(), req.ThreadID, userID); err != nil {
		writeGuardError(w, r, err, MessageLimitMessage)
		return
	}

	created, err := h.store.CreateMessage(r.Context(), writes.Message{
		ThreadID: req.ThreadID,
		SenderID: userID,
		Text:     req.Text,
	})
	if err != nil {
		writeStoreError(w, r, err, "message")
		return
	}

	writeJSON(w, r, http.StatusCreated, created)
}

// writeGuardError answers 429 with quota headers and the flat error body for
// guard.ErrRateLimited.
func writeGuardError(w http.ResponseWriter, r *http.Request, err error, limitMessage string) {
	var limited *guard.RateLimitedError
	if !errors.As(err, &limited) {
		slog.ErrorContext(r.Context(), "abuse guard failed", "error", err)
		writeCodedError(w, r, ErrCodeInternal, "Failed to check rate limit")
		return
	}

	remaining := limited.Remaining
	if remaining < 0 {
		remaining = 0
	}
	retryAfter := int(limited.Policy.RefillInterval.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limited.Policy.MaxTokens))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

	slog.InfoContext(r.Context(), "write rejected by quota",
		"key", limited.Key,
		"policy", limited.Policy.Name,
	)
	writeFlatCodedError(w, r, ErrCodeRateLimited, limitMessage)
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error, kind string) {
	switch {
	case errors.Is(err, writes.ErrInvalidInput):
		writeCodedError(w, r, ErrCodeValidation, err.Error())
	case errors.Is(err, writes.ErrReferenceAbsent):
		writeCodedError(w, r, ErrCodeNotFound, "Referenced "+kind+" target not found")
	default:
		slog.ErrorContext(r.Context(), "failed to store "+kind, "error", err)
		writeCodedError(w, r, ErrCodePersistenceFailed, "Failed to store "+kind)
	}
}
