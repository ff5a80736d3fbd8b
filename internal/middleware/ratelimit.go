package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig configures the per-client front throttle.
type ThrottleConfig struct {
	// RequestsPerSecond is the steady refill rate per client. Must be > 0.
	RequestsPerSecond float64
	// Burst is the number of requests a client may issue at once. Must be > 0.
	Burst int
	// IdleTTL evicts limiters unused for this long. Defaults to 10 minutes.
	IdleTTL time.Duration
}

// Validate checks that the ThrottleConfig has valid values.
func (c ThrottleConfig) Validate() error {
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("RequestsPerSecond must be > 0 (got %g)", c.RequestsPerSecond)
	}
	if c.Burst <= 0 {
		return fmt.Errorf("Burst must be > 0 (got %d)", c.Burst)
	}
	return nil
}

const defaultThrottleIdleTTL = 10 * time.Minute

type clientLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// IPThrottle keeps one in-process token bucket per client key.
// It sits in front of every handler and is independent of the persistent
// per-user quotas enforced for proposals and messages.
type IPThrottle struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time
}

// NewIPThrottle creates a throttle from cfg.
func NewIPThrottle(cfg ThrottleConfig) *IPThrottle {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = defaultThrottleIdleTTL
	}
	return &IPThrottle{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		idleTTL: cfg.IdleTTL,
		now:     time.Now,
	}
}

func (t *IPThrottle) limiterFor(key string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if c, ok := t.clients[key]; ok {
		c.lastSeen = now
		return c.lim
	}
	lim := rate.NewLimiter(t.limit, t.burst)
	t.clients[key] = &clientLimiter{lim: lim, lastSeen: now}
	return lim
}

// Allow reports whether key may proceed now. When it may not, retryAfter is
// the delay until the next token.
func (t *IPThrottle) Allow(key string) (allowed bool, retryAfter time.Duration) {
	lim := t.limiterFor(key)
	now := t.now()
	r := lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup removes limiters idle longer than IdleTTL.
func (t *IPThrottle) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.idleTTL)
	for key, c := range t.clients {
		if c.lastSeen.Before(cutoff) {
			delete(t.clients, key)
		}
	}
}

// Len returns the number of tracked clients.
func (t *IPThrottle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

// KeyFunc extracts a throttle key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc returns a KeyFunc that uses the client's IP address.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		// Check X-Forwarded-For header first (for proxied requests)
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// Use the first IP in the chain, trimming whitespace per RFC 7239
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr might not have a port
			return r.RemoteAddr
		}
		return host
	}
}

// Throttle is a middleware that rejects clients exceeding the throttle with
// HTTP 429 and a Retry-After header. Health probes are never throttled.
func Throttle(t *IPThrottle, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			endpoint := normalizePath(r.URL.Path)
			if metrics != nil {
				metrics.IncThrottleRequests(endpoint)
			}

			allowed, retryAfter := t.Allow(keyFunc(r))
			if !allowed {
				if metrics != nil {
					metrics.IncThrottleBlocked(endpoint)
				}
				SetErrorCode(r.Context(), "rate_limited")

				seconds := int(math.Ceil(retryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				writeErrorEnvelope(w, http.StatusTooManyRequests, "rate_limited", "Too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
