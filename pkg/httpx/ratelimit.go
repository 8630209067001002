package httpx

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/plumeapp/plume/pkg/cryptox"
	"github.com/plumeapp/plume/pkg/slogx"
)

// RateLimitConfig defines a fixed-window rate limiting policy. Policy is
// data: handlers pick a profile, the limiter itself never hard-codes one.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in the time window
	RequestsPerWindow int
	// Window is the fixed time window for rate limiting
	Window time.Duration
}

// Common rate limit profiles for the session endpoints.
// These can be overridden via environment variables (see init() below)
var (
	// SyncLimit for the session synchronization endpoint (writes identity rows)
	// Override with: RATELIMIT_SYNC_REQUESTS, RATELIMIT_SYNC_WINDOW_SEC
	SyncLimit = RateLimitConfig{
		RequestsPerWindow: 10,
		Window:            time.Minute,
	}

	// ActivityLimit for activity-timestamp pings
	// Override with: RATELIMIT_ACTIVITY_REQUESTS, RATELIMIT_ACTIVITY_WINDOW_SEC
	ActivityLimit = RateLimitConfig{
		RequestsPerWindow: 30,
		Window:            time.Minute,
	}

	// GeneralLimit for the rest of the user-facing API
	// Override with: RATELIMIT_GENERAL_REQUESTS, RATELIMIT_GENERAL_WINDOW_SEC
	GeneralLimit = RateLimitConfig{
		RequestsPerWindow: 100,
		Window:            time.Minute,
	}
)

func init() {
	// Allow overriding rate limits via environment variables (useful for testing)
	SyncLimit = ParseRateLimitFromEnv("SYNC", SyncLimit)
	ActivityLimit = ParseRateLimitFromEnv("ACTIVITY", ActivityLimit)
	GeneralLimit = ParseRateLimitFromEnv("GENERAL", GeneralLimit)
}

// ParseRateLimitFromEnv reads rate limit configuration from environment variables.
// Environment variables follow the pattern: RATELIMIT_{prefix}_{field}
// For example: RATELIMIT_SYNC_REQUESTS, RATELIMIT_SYNC_WINDOW_SEC
func ParseRateLimitFromEnv(prefix string, defaultConfig RateLimitConfig) RateLimitConfig {
	config := defaultConfig

	if val := os.Getenv("RATELIMIT_" + prefix + "_REQUESTS"); val != "" {
		if requests, err := strconv.Atoi(val); err == nil && requests > 0 {
			config.RequestsPerWindow = requests
		}
	}

	if val := os.Getenv("RATELIMIT_" + prefix + "_WINDOW_SEC"); val != "" {
		if windowSec, err := strconv.Atoi(val); err == nil && windowSec > 0 {
			config.Window = time.Duration(windowSec) * time.Second
		}
	}

	return config
}

// SweepInterval is how often expired window entries are removed. The sweep is
// advisory only: Check compares against the wall clock, so a stale entry is
// never trusted, it just occupies memory until the next sweep.
const SweepInterval = 5 * time.Minute

// RateLimitResult reports the outcome of a single Check call.
type RateLimitResult struct {
	// Allowed is true when the request fits in the current window.
	Allowed bool
	// Remaining is the quota left in the window after this request.
	Remaining int
	// ResetTime is when the current window ends and the count starts over.
	ResetTime time.Time
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// RateLimiter is a fixed-window request counter keyed by an arbitrary string
// (client IP in this deployment). State is process-local and ephemeral.
type RateLimiter struct {
	config RateLimitConfig

	// mu guards entries. The read-modify-write in Check must be a single
	// atomic unit per key: without it two concurrent requests can both
	// observe count < limit and both be admitted.
	mu      sync.Mutex
	entries map[string]*rateLimitEntry

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a limiter with the given policy and starts the
// background sweep. Call Stop when the limiter is no longer needed.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.sweepLoop()

	return rl
}

// Stop terminates the background sweep goroutine.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Check records a request for the given key and reports whether it is
// allowed. A fresh or elapsed window starts over with count=1 and always
// admits; within a window the count climbs until it reaches the limit, after
// which further requests are denied until ResetTime.
func (rl *RateLimiter) Check(key string) RateLimitResult {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	e, ok := rl.entries[key]
	if !ok || !now.Before(e.resetTime) {
		e = &rateLimitEntry{count: 1, resetTime: now.Add(rl.config.Window)}
		rl.entries[key] = e
		return RateLimitResult{
			Allowed:   true,
			Remaining: remaining(rl.config.RequestsPerWindow, e.count),
			ResetTime: e.resetTime,
		}
	}

	if e.count >= rl.config.RequestsPerWindow {
		return RateLimitResult{Allowed: false, Remaining: 0, ResetTime: e.resetTime}
	}

	e.count++
	return RateLimitResult{
		Allowed:   true,
		Remaining: remaining(rl.config.RequestsPerWindow, e.count),
		ResetTime: e.resetTime,
	}
}

// EntryCount returns the number of keys currently tracked. For tests and metrics.
func (rl *RateLimiter) EntryCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

func remaining(limit, count int) int {
	if r := limit - count; r > 0 {
		return r
	}
	return 0
}

func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.sweep(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// sweep drops entries whose window has already elapsed.
func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, e := range rl.entries {
		if !now.Before(e.resetTime) {
			delete(rl.entries, key)
		}
	}
}

// KeyExtractor is a function that extracts a unique key from the request
// for rate limiting purposes (e.g., IP address, session ID, etc.)
type KeyExtractor func(*http.Request) string

// IPKeyExtractor extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func IPKeyExtractor(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// CompositeKeyExtractor combines multiple key extractors with a separator.
// Example: CompositeKeyExtractor(":", IPKeyExtractor, HeaderKeyExtractor("X-Device-ID"))
func CompositeKeyExtractor(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		var parts []string
		for _, extractor := range extractors {
			if key := extractor(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, sep)
	}
}

// HeaderKeyExtractor extracts a key from a request header.
func HeaderKeyExtractor(name string) KeyExtractor {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(name))
	}
}

// RateLimitMiddleware creates a rate limiting middleware with the given
// configuration. The keyExtractor determines how requests are grouped.
func RateLimitMiddleware(config RateLimitConfig, keyExtractor KeyExtractor) Middleware {
	rl := NewRateLimiter(config)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			key := keyExtractor(r)
			if key == "" {
				// If we can't extract a key, allow the request but log it
				log.Warn("rate limit: unable to extract key, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			result := rl.Check(key)
			if !result.Allowed {
				retryAfter := max(int(time.Until(result.ResetTime).Seconds()), 1)

				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime.Unix()))

				// Fingerprint the key: it can carry a session identifier and
				// must not appear raw in logs
				log.Warn("rate limit exceeded",
					"endpoint", r.URL.Path,
					"key_fp", cryptox.FingerprintToken(key),
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":             "rate_limit_exceeded",
					"error_description": "Too many requests. Please try again later.",
					"retry_after":       retryAfter,
					"remaining":         0,
					"reset":             result.ResetTime.Unix(),
				})
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP creates a rate limiter that limits by IP address only.
func RateLimitByIP(config RateLimitConfig) Middleware {
	return RateLimitMiddleware(config, IPKeyExtractor)
}
