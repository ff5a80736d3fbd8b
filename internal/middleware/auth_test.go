package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/onnwee/freelamatch/internal/auth"
)

const testSecret = "middleware-test-secret"

func TestRequireAuth(t *testing.T) {
	svc := auth.NewJWTService(testSecret)
	valid, err := svc.IssueToken("user-99")
	if err != nil {
		t.Fatalf("IssueToken() error: %v", err)
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-99",
		Audience:  jwt.ClaimStrings{auth.DefaultAudience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign expired token: %v", err)
	}

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantReason string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, AuthFailureMissing},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, AuthFailureMalformed},
		{"empty token", "Bearer ", http.StatusUnauthorized, AuthFailureMalformed},
		{"invalid token", "Bearer abc.def.ghi", http.StatusUnauthorized, AuthFailureInvalid},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, AuthFailureExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics()
			reg := prometheus.NewRegistry()
			if err := metrics.Register(reg); err != nil {
				t.Fatalf("Register() error: %v", err)
			}

			var gotUser string
			handler := RequireAuth(svc, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser = GetUserID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/proposals", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
			if tt.wantStatus == http.StatusOK {
				if gotUser != "user-99" {
					t.Errorf("expected user-99 in context, got %q", gotUser)
				}
				return
			}
			if rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
			failures := findMetric(t, reg, MetricAuthFailures)
			if len(failures) != 1 || labelValue(failures[0], "reason") != tt.wantReason {
				t.Errorf("expected failure reason %q, got %v", tt.wantReason, failures)
			}
		})
	}
}
