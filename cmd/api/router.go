package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/interceptors"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/observability"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health() error
}

// SetupRouter configures all routes and returns the HTTP service
func SetupRouter(deps *Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Register capture routes
	deps.CaptureHandler.Register(mux, instrumentRoute)
	deps.Logger.Info("registered capture routes", "paths", []string{"/v1/notifications", "/v1/transactions/{id}"})

	// Register health and metrics routes
	var health HealthChecker
	if deps.DB != nil {
		health = deps.DB
	}
	registerUtilityRoutes(mux, deps, health)

	publicPaths := []string{"/healthz", "/ready", "/metrics"}

	tracer := otel.GetTracerProvider().Tracer("capture/api")

	var rateLimiter interceptors.Middleware
	if deps.Config.Server.RateLimitPerSecond > 0 && deps.Config.Server.RateLimitBurst > 0 {
		limiter := rate.NewLimiter(
			rate.Limit(float64(deps.Config.Server.RateLimitPerSecond)),
			deps.Config.Server.RateLimitBurst,
		)
		rateLimiter = interceptors.NewRateLimitMiddleware(limiter)
	}

	var auth interceptors.Middleware
	jwtSecret := []byte(deps.Config.Auth.JWTSecret)
	if len(jwtSecret) == 0 {
		deps.Logger.Warn("JWT secret is empty; ingest endpoints are unauthenticated")
	} else {
		auth = interceptors.NewAuthMiddleware(jwtSecret, publicPaths...)
	}

	handler := interceptors.Chain(mux,
		interceptors.NewRequestIDMiddleware("X-Request-ID"),
		interceptors.NewTracingMiddleware(tracer),
		interceptors.NewRecoveryMiddleware(deps.Logger),
		interceptors.NewLoggingMiddleware(deps.Logger),
		rateLimiter,
		auth,
		securityHeaders,
	)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.Config.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           7200, // Cache preflights for 2 hours
	})

	return corsHandler.Handler(handler)
}

// instrumentRoute records per-route metrics and reports the matched pattern to the tracer.
func instrumentRoute(route string) func(http.Handler) http.Handler {
	metrics := observability.NewMetricsMiddleware(route)
	return func(next http.Handler) http.Handler {
		return interceptors.RecordRoute(metrics(next))
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// registerUtilityRoutes registers health check, metrics, and other utility routes
func registerUtilityRoutes(mux *http.ServeMux, deps *Dependencies, health HealthChecker) {
	// Health check endpoint
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		type status struct {
			Status string `json:"status"`
			Detail string `json:"detail,omitempty"`
		}
		result := map[string]status{
			"db":    {Status: "ok"},
			"queue": {Status: "ok"},
		}
		code := http.StatusOK

		if health == nil {
			result["db"] = status{Status: "fail", Detail: "not configured"}
			code = http.StatusServiceUnavailable
		} else if err := health.Health(); err != nil {
			result["db"] = status{Status: "fail", Detail: err.Error()}
			code = http.StatusServiceUnavailable
		}
		if deps.Dispatcher == nil {
			result["queue"] = status{Status: "fail", Detail: "dispatcher not running"}
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(result); err != nil {
			deps.Logger.Error("failed to encode health details", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered health check", "path", "/healthz")

	// Readiness check endpoint
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ready")); err != nil {
			deps.Logger.Error("failed to write readiness response", slog.Any("error", err))
		}
	})
	deps.Logger.Info("registered readiness check", "path", "/ready")

	// Metrics endpoint (Prometheus)
	if deps.Config.Observability.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
		deps.Logger.Info("registered metrics endpoint", "path", "/metrics")
	}
}
