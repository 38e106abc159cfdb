package interceptors

import (
	"net/http"

	"golang.org/x/time/rate"
)

// NewRateLimitMiddleware rejects requests with 429 once limiter is exhausted.
func NewRateLimitMiddleware(limiter *rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
