package middleware

import (
	"net"
	"net/http"

	"github.com/nicobenz/flowpertoire/pkg/common"
	"github.com/nicobenz/flowpertoire/pkg/ratelimit"
	"go.uber.org/zap"
)

// RateLimit refuses requests over the limiter's budget with 429. The key
// is the client IP, so RealIP must run first. Limiter errors fail open.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r)
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("Rate limiter failed, allowing request",
					zap.String("key", key),
					zap.Error(err),
				)
			}
			if !allowed {
				w.Header().Set("Retry-After", "60")
				common.RespondJSON(w, http.StatusTooManyRequests, map[string]string{
					"message": "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
