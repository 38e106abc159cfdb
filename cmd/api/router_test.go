package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/handler"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rates"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/service"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/config"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/interceptors"
)

type nopProcessor struct{}

func (nopProcessor) Process(context.Context, common.NotificationEvent) (service.Outcome, error) {
	return service.OutcomeCaptured, nil
}

type stubHealth struct{ err error }

func (s stubHealth) Health() error { return s.err }

func newTestDeps(t *testing.T, secret string) *Dependencies {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dispatcher := service.NewDispatcher(nopProcessor{}, 1, 8, logger)
	t.Cleanup(dispatcher.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{
			RateLimitPerSecond: 100,
			RateLimitBurst:     100,
			CORSAllowedOrigins: []string{"http://localhost:3000"},
		},
		Auth:          config.AuthConfig{JWTSecret: secret},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
	}
	return &Dependencies{
		Config:         cfg,
		Logger:         logger,
		Dispatcher:     dispatcher,
		CaptureHandler: handler.NewCaptureHandler(dispatcher, nil, logger),
	}
}

const ingestBody = `{"source_package":"rs.bancaintesa.mobilebanking","text":"Plaćeno 100,00 RSD na MAXI","post_timestamp":1741773600000}`

func TestSetupRouter_IngestWithoutAuth(t *testing.T) {
	router := SetupRouter(newTestDeps(t, ""))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/notifications", strings.NewReader(ingestBody)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSetupRouter_IngestRequiresToken(t *testing.T) {
	secret := "device-secret"
	router := SetupRouter(newTestDeps(t, secret))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/notifications", strings.NewReader(ingestBody)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := interceptors.IssueDeviceToken([]byte(secret), "pixel-7", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications", strings.NewReader(ingestBody))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	// utility routes stay public
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterUtilityRoutes_Health(t *testing.T) {
	tests := []struct {
		name   string
		health HealthChecker
		want   int
	}{
		{"healthy", stubHealth{}, http.StatusOK},
		{"db down", stubHealth{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
		{"no db", nil, http.StatusServiceUnavailable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mux := http.NewServeMux()
			registerUtilityRoutes(mux, newTestDeps(t, ""), tc.health)

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestSetupRouter_CORSPreflight(t *testing.T) {
	router := SetupRouter(newTestDeps(t, ""))

	req := httptest.NewRequest(http.MethodOptions, "/v1/notifications", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildPipeline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	table, err := rates.NewTable(common.CurrencyRSD, map[common.Currency]decimal.Decimal{
		common.CurrencyEUR: decimal.RequireFromString("117.2"),
	})
	require.NoError(t, err)

	cfg := config.CaptureConfig{HomeCurrency: common.CurrencyRSD, RewardCredit: 10}
	pipeline, err := BuildPipeline(rules.Default(), table, cfg, logger)
	require.NoError(t, err)

	candidate, outcome, err := pipeline.Parse(common.NotificationEvent{
		SourcePackage: "rs.bancaintesa.mobilebanking",
		Text:          "Plaćeno 10,00 EUR na LIDL",
		PostTimestamp: 1741773600000,
	})
	require.NoError(t, err)
	assert.Equal(t, service.OutcomeCaptured, outcome)
	assert.True(t, candidate.Amount.Equal(decimal.RequireFromString("1172")))
	assert.Equal(t, common.CategoryGroceries, candidate.Category)

	cfg.RewardCredit = -1
	_, err = BuildPipeline(rules.Default(), table, cfg, logger)
	assert.Error(t, err)
}

func TestDedupConfig(t *testing.T) {
	cfg := config.CaptureConfig{
		DedupWindow:         2 * time.Minute,
		AmountTolerance:     decimal.RequireFromString("0.05"),
		SimilarityThreshold: 0.8,
	}
	dc := DedupConfig(cfg)
	assert.Equal(t, 2*time.Minute, dc.Window)
	assert.True(t, dc.AmountTolerance.Equal(decimal.RequireFromString("0.05")))
	assert.InDelta(t, 0.8, dc.SimilarityThreshold, 1e-9)
}
