package interceptors

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// NewRecoveryMiddleware turns handler panics into 500 responses.
func NewRecoveryMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					requestID, _ := GetRequestIDFromContext(r.Context())
					logger.Error("panic recovered",
						"path", r.URL.Path,
						"request_id", requestID,
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
