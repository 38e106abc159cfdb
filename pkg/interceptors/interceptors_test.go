package interceptors

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(okHandler(), mark("outer"), nil, mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner"}, order)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := NewRequestIDMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetRequestIDFromContext(r.Context())
	}))

	t.Run("propagates caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	})

	t.Run("mints id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggingMiddleware_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	NewLoggingMiddleware(discardLogger())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	mux := http.NewServeMux()
	mux.Handle("GET /v1/transactions/{id}", okHandler())

	rec := httptest.NewRecorder()
	NewTracingMiddleware(nil)(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/transactions/42", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type recordingTracer struct {
	noop.Tracer
	lastName string
}

type recordingSpan struct {
	noop.Span
	tracer *recordingTracer
}

func (s recordingSpan) SetName(name string) { s.tracer.lastName = name }

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.lastName = name
	span := recordingSpan{tracer: t}
	return trace.ContextWithSpan(ctx, span), span
}

func TestTracingMiddleware_SpanNamedAfterRoute(t *testing.T) {
	// copies the request the same way the auth middleware does
	withValue := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), deviceIDKey{}, "dev-1")))
		})
	}

	mux := http.NewServeMux()
	mux.Handle("GET /v1/transactions/{id}", RecordRoute(okHandler()))

	tests := []struct {
		name string
		path string
		want string
	}{
		{"matched route", "/v1/transactions/8f7c1d2e-6a0b-4c57-9f31-2b4d5e6f7a8b", "GET /v1/transactions/{id}"},
		{"unmatched path", "/v1/unknown/123", "GET unmatched"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tracer := &recordingTracer{}
			h := Chain(mux, NewTracingMiddleware(tracer), withValue)
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.want, tracer.lastName)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	h := NewRateLimitMiddleware(rate.NewLimiter(rate.Every(time.Hour), 2))(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestAuthMiddleware(t *testing.T) {
	secret := []byte("test-secret")
	valid, err := IssueDeviceToken(secret, "pixel-7", time.Hour)
	require.NoError(t, err)
	expired, err := IssueDeviceToken(secret, "pixel-7", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueDeviceToken([]byte("other-secret"), "pixel-7", time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "pixel-7"}).SignedString(secret)
	require.NoError(t, err)

	var device string
	h := NewAuthMiddleware(secret, "/healthz")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		device, _ = GetDeviceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid token", "/v1/notifications", "Bearer " + valid, http.StatusNoContent},
		{"public path", "/healthz", "", http.StatusNoContent},
		{"missing header", "/v1/notifications", "", http.StatusUnauthorized},
		{"wrong scheme", "/v1/notifications", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "/v1/notifications", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "/v1/notifications", "Bearer " + foreign, http.StatusUnauthorized},
		{"no expiry", "/v1/notifications", "Bearer " + noExpiry, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			device = ""
			req := httptest.NewRequest(http.MethodPost, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
			if tc.name == "valid token" {
				assert.Equal(t, "pixel-7", device)
			}
		})
	}
}

func TestAuthenticate_WrapsUnauthenticated(t *testing.T) {
	secret := []byte("test-secret")
	expired, err := IssueDeviceToken(secret, "pixel-7", -time.Minute)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"missing":    "",
		"malformed":  "Bearer not-a-jwt",
		"expired":    "Bearer " + expired,
		"no subject": "Bearer " + noSubject,
	} {
		_, err := authenticate(header, secret)
		assert.ErrorIs(t, err, common.ErrUnauthenticated, name)
	}

	_, err = authenticate("Bearer "+expired, nil)
	assert.ErrorIs(t, err, common.ErrUnauthenticated)

	rec := httptest.NewRecorder()
	NewAuthMiddleware(secret)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/transactions/1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), common.ErrUnauthenticated.Error())
}

func TestIssueDeviceToken_Validation(t *testing.T) {
	_, err := IssueDeviceToken(nil, "pixel-7", time.Hour)
	assert.Error(t, err)
	_, err = IssueDeviceToken([]byte("s"), "", time.Hour)
	assert.Error(t, err)
}
