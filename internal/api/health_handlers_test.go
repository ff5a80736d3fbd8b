package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.err
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	w := httptest.NewRecorder()
	handlers.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Status != "healthy" || response.Checks["runtime"] != "ok" {
		t.Errorf("unexpected response %+v", response)
	}
	if response.Timestamp == "" {
		t.Error("expected timestamp to be set")
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	w := httptest.NewRecorder()
	handlers.Health(w, httptest.NewRequest(http.MethodPost, "/health", nil))

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestReady(t *testing.T) {
	failing := &mockHealthChecker{err: errors.New("connection refused")}
	ok := &mockHealthChecker{}

	tests := []struct {
		name       string
		cfg        HealthHandlersConfig
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "all healthy",
			cfg:        HealthHandlersConfig{DBChecker: ok, RedisChecker: ok},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "ok", "redis": "ok", "metrics": "ok"},
		},
		{
			name:       "database down",
			cfg:        HealthHandlersConfig{DBChecker: failing, RedisChecker: ok},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "error", "redis": "ok"},
		},
		{
			name:       "redis down",
			cfg:        HealthHandlersConfig{DBChecker: ok, RedisChecker: failing},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "ok", "redis": "error"},
		},
		{
			name:       "nothing configured",
			cfg:        HealthHandlersConfig{},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "not_configured", "redis": "not_configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(tt.cfg)
			w := httptest.NewRecorder()
			handlers.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var response HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			for name, want := range tt.wantChecks {
				if response.Checks[name] != want {
					t.Errorf("check %s = %q, want %q", name, response.Checks[name], want)
				}
			}
		})
	}
}
