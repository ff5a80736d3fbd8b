package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/freelamatch/internal/auth"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Auth failure reasons for MetricAuthFailures.
const (
	AuthFailureMissing   = "missing"
	AuthFailureMalformed = "malformed"
	AuthFailureInvalid   = "invalid"
	AuthFailureExpired   = "expired"
)

// RequireAuth rejects requests without a valid bearer token with 401.
// On success the token subject is stored with SetUserID.
func RequireAuth(validator TokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fail := func(reason, msg string) {
				if metrics != nil {
					metrics.IncAuthFailures(reason)
				}
				SetErrorCode(r.Context(), "auth_failed")
				w.Header().Set("WWW-Authenticate", `Bearer realm="freelamatch"`)
				writeErrorEnvelope(w, http.StatusUnauthorized, "auth_failed", msg)
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				fail(AuthFailureMissing, "Missing authorization header")
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				fail(AuthFailureMalformed, "Authorization header must be a bearer token")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					fail(AuthFailureExpired, "Token has expired")
					return
				}
				fail(AuthFailureInvalid, "Invalid token")
				return
			}

			ctx := SetUserID(r.Context(), claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeErrorEnvelope writes the API error envelope. Middleware cannot use
// the api package helpers because api depends on middleware.
func writeErrorEnvelope(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
}
