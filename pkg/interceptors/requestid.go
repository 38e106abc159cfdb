package interceptors

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type requestIDKey struct{}

// NewRequestIDMiddleware propagates the caller's request id from header, or mints one.
func NewRequestIDMiddleware(header string) Middleware {
	if header == "" {
		header = "X-Request-ID"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(header)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}
			w.Header().Set(header, id)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		})
	}
}

// GetRequestIDFromContext returns the id set by the request id middleware.
func GetRequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok
}
