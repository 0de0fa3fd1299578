// internal/handlers/ratelimit.go
package handlers

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geoduel-gg/geoduel/internal/cache"
)

// RateLimit caps requests per client IP on one endpoint using a Redis
// counter keyed by endpoint and IP. A Redis failure lets the request
// through; throttling is a shield, not a dependency.
func RateLimit(endpoint string, limit int, window time.Duration, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, err := cache.IncrRateLimit(r.Context(), endpoint, clientIP(r), window)
		if err != nil {
			logrus.WithError(err).WithField("endpoint", endpoint).Warn("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if n > int64(limit) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
