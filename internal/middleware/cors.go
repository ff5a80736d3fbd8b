package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// AnyOrigin in AllowedOrigins permits every origin without credentials.
const AnyOrigin = "*"

// CORSConfig holds the configuration for CORS middleware.
type CORSConfig struct {
	AllowedOrigins   []string // Allowed origins, or AnyOrigin
	AllowedMethods   []string // List of allowed HTTP methods
	AllowedHeaders   []string // List of allowed headers
	AllowCredentials bool     // Whether to allow credentials; ignored with AnyOrigin
	MaxAge           int      // Preflight cache duration in seconds
}

// DefaultCORSConfig returns the browser client configuration for origins.
func DefaultCORSConfig(origins []string) CORSConfig {
	return CORSConfig{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         600,
	}
}

// CORS returns a middleware that handles Cross-Origin Resource Sharing (CORS).
//
// Configuration:
//   - AllowedOrigins: Explicit list of allowed origins, or AnyOrigin. If empty, CORS is disabled.
//   - AllowedMethods: HTTP methods to allow.
//   - AllowedHeaders: Headers to allow.
//   - AllowCredentials: Whether to allow credentials (cookies, auth headers).
//   - MaxAge: How long browsers can cache preflight responses (in seconds).
//
// Requests from an origin outside the allowlist are rejected with 403.
// Preflight OPTIONS requests are answered with 204 without reaching next.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowedOriginsMap := make(map[string]bool)
	anyOrigin := false
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch origin {
		case "":
		case AnyOrigin:
			anyOrigin = true
		default:
			allowedOriginsMap[origin] = true
		}
	}

	allowedMethodsStr := strings.Join(cfg.AllowedMethods, ", ")
	allowedHeadersStr := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !anyOrigin && len(allowedOriginsMap) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")

			// Same-origin request
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case anyOrigin:
				w.Header().Set("Access-Control-Allow-Origin", AnyOrigin)
			case allowedOriginsMap[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
				if cfg.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			default:
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			w.Header().Set("Access-Control-Allow-Methods", allowedMethodsStr)
			w.Header().Set("Access-Control-Allow-Headers", allowedHeadersStr)

			if r.Method == http.MethodOptions {
				if cfg.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
