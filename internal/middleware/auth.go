package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/werserver/thaideals/internal/auth"
)

// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
const minAuthDuration = 200 * time.Millisecond

// AdminAuthConfig holds configuration for the admin auth middleware.
type AdminAuthConfig struct {
	Logger *slog.Logger
	// TokenHash is the argon2id hash of the admin token. An empty hash
	// means admin access is not configured and every request is refused.
	TokenHash string
}

// AdminAuth returns middleware that guards the admin surface with a
// single bearer token verified against its stored hash.
func AdminAuth(cfg AdminAuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Ensure consistent timing regardless of outcome
			defer func() {
				elapsed := time.Since(startTime)
				if elapsed < minAuthDuration {
					time.Sleep(minAuthDuration - elapsed)
				}
			}()

			if cfg.TokenHash == "" {
				cfg.Logger.Warn("admin access attempted with no token configured",
					slog.String("ip", r.RemoteAddr),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "missing_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			match, err := auth.VerifyToken(token, cfg.TokenHash)
			if err != nil || !match {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "invalid_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken reads the token from the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing admin token"}}`))
}
