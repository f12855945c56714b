package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MiSArch/shoppingcart/pkg/httputil"
)

// clientLimiter pairs a token bucket with the time its key was last seen.
type clientLimiter struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// limiterRegistry hands out one token bucket per client key and evicts
// buckets that have been idle for longer than the TTL.
type limiterRegistry struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	clock   func() time.Time // swapped out in tests
}

func newLimiterRegistry(rps, burst int, ttl time.Duration) *limiterRegistry {
	reg := &limiterRegistry{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(rps),
		burst:   burst,
		ttl:     ttl,
		clock:   time.Now,
	}
	go reg.sweepEvery(ttl)
	return reg
}

// bucketFor returns the client's token bucket, creating it on first sight.
// Every lookup refreshes lastSeen so active clients are never evicted.
func (reg *limiterRegistry) bucketFor(key string) *rate.Limiter {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	c, ok := reg.clients[key]
	if !ok {
		c = &clientLimiter{bucket: rate.NewLimiter(reg.limit, reg.burst)}
		reg.clients[key] = c
	}
	c.lastSeen = reg.clock()
	return c.bucket
}

func (reg *limiterRegistry) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		reg.sweep()
	}
}

// sweep drops every client whose bucket has been idle past the TTL.
func (reg *limiterRegistry) sweep() {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	cutoff := reg.clock().Add(-reg.ttl)
	for key, c := range reg.clients {
		if c.lastSeen.Before(cutoff) {
			delete(reg.clients, key)
		}
	}
}

// size reports the number of tracked clients. Test hook.
func (reg *limiterRegistry) size() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.clients)
}

// seenAt reports when the key was last seen, if it is tracked. Test hook.
func (reg *limiterRegistry) seenAt(key string) (time.Time, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if c, ok := reg.clients[key]; ok {
		return c.lastSeen, true
	}
	return time.Time{}, false
}

// RateLimit returns middleware that enforces per-user token bucket rate
// limiting. Requests are keyed by the X-User-ID header; requests without one
// (e.g. probes hitting an API route by mistake) fall back to the client IP so
// a single anonymous source cannot exhaust the service either.
// Returns HTTP 429 Too Many Requests when the limit is exceeded.
func RateLimit(rps, burst int, logger *slog.Logger) func(http.Handler) http.Handler {
	const idleTTL = 3 * time.Minute
	reg := newLimiterRegistry(rps, burst, idleTTL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(headerUserID)
			if key == "" {
				key = clientIP(r)
			}

			if !reg.bucketFor(key).Allow() {
				logger.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("path", r.URL.Path),
				)
				httputil.WriteJSON(w, http.StatusTooManyRequests, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "RATE_LIMITED",
						Message: "too many requests",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP address from the request.
// It checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take the first valid IP in the chain.
		for _, part := range strings.Split(xff, ",") {
			if ip := net.ParseIP(strings.TrimSpace(part)); ip != nil {
				return ip.String()
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return ip.String()
		}
	}

	// Fall back to RemoteAddr, stripping the port.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
