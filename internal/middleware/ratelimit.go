package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for the per-IP limiter applied
// to the outbound redirect endpoint.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Enabled bool
	RPS     int
	Burst   int
}

// ipLimiters keeps one token bucket per client IP. Entries idle past
// the eviction window are dropped to bound memory.
type ipLimiters struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterEviction = 10 * time.Minute

func newIPLimiters(rps, burst int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if entry, ok := l.limiters[ip]; ok {
		entry.lastSeen = now
		return entry.limiter
	}

	// Piggyback eviction on inserts; the map only grows on new IPs.
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterEviction {
			delete(l.limiters, ip)
		}
	}

	entry := &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst), lastSeen: now}
	l.limiters[ip] = entry
	return entry.limiter
}

// RateLimitIP returns middleware that rate limits requests per client
// IP. Applied to the redirect endpoint to keep click floods away from
// the click recorder.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	limiters := newIPLimiters(cfg.RPS, cfg.Burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := getClientIP(r)
			if !limiters.get(ip).Allow() {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", "1")
				writeRateLimitError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":{"code":"RATE_LIMITED","message":"Rate limit exceeded."}}`))
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func getClientIP(r *http.Request) string {
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		// Take the first IP (client IP)
		for i := range xff {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
