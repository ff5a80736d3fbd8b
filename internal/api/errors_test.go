package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/onnwee/freelamatch/internal/middleware"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response body: %v, body: %s", err, w.Body.String())
	}
	return resp
}

func decodeFlatError(t *testing.T, w *httptest.ResponseRecorder) FlatErrorResponse {
	t.Helper()
	var resp FlatErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse flat error body: %v, body: %s", err, w.Body.String())
	}
	return resp
}

func TestWriteFlatError_ErrorIsString(t *testing.T) {
	w := httptest.NewRecorder()

	WriteFlatError(w, context.Background(), http.StatusNotFound, ErrCodeNotFound, "Job not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	var raw map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	msg, ok := raw["error"].(string)
	if !ok {
		t.Fatalf("error field is %T, want string: %s", raw["error"], w.Body.String())
	}
	if msg != "Job not found" {
		t.Errorf("expected error 'Job not found', got %q", msg)
	}
	if raw["code"] != ErrCodeNotFound {
		t.Errorf("expected code %s, got %v", ErrCodeNotFound, raw["code"])
	}
}

func TestWriteError_BasicFields(t *testing.T) {
	w := httptest.NewRecorder()

	WriteError(w, context.Background(), http.StatusNotFound, ErrCodeNotFound, "Job not found")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", ct)
	}

	resp := decodeError(t, w)
	if resp.Error.Code != ErrCodeNotFound {
		t.Errorf("expected error code %s, got %s", ErrCodeNotFound, resp.Error.Code)
	}
	if resp.Error.Message != "Job not found" {
		t.Errorf("expected message 'Job not found', got %s", resp.Error.Message)
	}
}

func TestWriteError_IntegrationWithLoggingMiddleware(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	handler := middleware.Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeCodedError(w, r, ErrCodeUpstreamFailed, "Similarity search failed")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/shortlists", nil))

	if w.Code != http.StatusBadGateway {
		t.Errorf("expected status 502, got %d", w.Code)
	}

	var entry struct {
		Level     string `json:"level"`
		Status    int    `json:"status"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	if entry.Status != http.StatusBadGateway || entry.Level != "ERROR" {
		t.Errorf("unexpected log entry %+v", entry)
	}
	if entry.ErrorCode != ErrCodeUpstreamFailed {
		t.Errorf("expected error_code %s in logs, got %s", ErrCodeUpstreamFailed, entry.ErrorCode)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	tests := []struct {
		code       string
		wantStatus int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeAuthFailed, http.StatusUnauthorized},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamFailed, http.StatusBadGateway},
		{ErrCodePersistenceFailed, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
		{"unknown_code", http.StatusInternalServerError}, // default
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusCodeMapping(tt.code); got != tt.wantStatus {
				t.Errorf("StatusCodeMapping(%s) = %d, want %d", tt.code, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteError_SpecialCharactersInMessage(t *testing.T) {
	w := httptest.NewRecorder()
	msg := `Limite de mensagens por minuto atingido. <"quoted">`

	WriteError(w, context.Background(), http.StatusTooManyRequests, ErrCodeRateLimited, msg)

	if resp := decodeError(t, w); resp.Error.Message != msg {
		t.Errorf("message not preserved: %q", resp.Error.Message)
	}
}
