// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rates"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Profiling     ProfilingConfig
	Observability ObservabilityConfig
	Capture       CaptureConfig
	LogLevel      string
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSAllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds a pgx connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

type AuthConfig struct {
	// JWTSecret signs device tokens. Empty disables ingest authentication.
	JWTSecret string
}

type ProfilingConfig struct {
	Enabled bool
	Port    int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// CaptureConfig tunes the notification capture pipeline.
type CaptureConfig struct {
	HomeCurrency        common.Currency
	Workers             int
	QueueSize           int
	DedupWindow         time.Duration
	AmountTolerance     decimal.Decimal
	SimilarityThreshold float64
	RewardCredit        int
	StrictDedup         bool
	RulesFile           string
	Rates               map[common.Currency]decimal.Decimal
}

// SetDefaults registers every key with its default so environment lookups resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("RATE_LIMIT_PER_SECOND", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "budget_tracker")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("PROFILING_ENABLED", false)
	v.SetDefault("PROFILING_PORT", 6060)
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("CAPTURE_HOME_CURRENCY", string(common.CurrencyRSD))
	v.SetDefault("CAPTURE_WORKERS", 0)
	v.SetDefault("CAPTURE_QUEUE_SIZE", 0)
	v.SetDefault("CAPTURE_DEDUP_WINDOW", 5*time.Minute)
	v.SetDefault("CAPTURE_AMOUNT_TOLERANCE", "0.01")
	v.SetDefault("CAPTURE_SIMILARITY_THRESHOLD", 0.7)
	v.SetDefault("CAPTURE_REWARD_CREDIT", 10)
	v.SetDefault("CAPTURE_STRICT_DEDUP", false)
	v.SetDefault("CAPTURE_RULES_FILE", "")
	v.SetDefault("CAPTURE_RATES", "")
}

// DefaultDinarRates are dinars per unit and only apply when the home currency is RSD.
const DefaultDinarRates = "EUR=117.2,USD=108.9,GBP=137.5,CHF=124.8,BAM=59.9"

// Load reads configuration from environment variables. Call godotenv.Load first to pick up .env.
func Load() (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a validated Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	capture, err := CaptureFromViper(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:               v.GetString("SERVER_HOST"),
			Port:               v.GetInt("SERVER_PORT"),
			RateLimitPerSecond: v.GetInt("RATE_LIMIT_PER_SECOND"),
			RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
			CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			Name:     v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Auth: AuthConfig{JWTSecret: v.GetString("AUTH_JWT_SECRET")},
		Profiling: ProfilingConfig{
			Enabled: v.GetBool("PROFILING_ENABLED"),
			Port:    v.GetInt("PROFILING_PORT"),
		},
		Observability: ObservabilityConfig{MetricsEnabled: v.GetBool("METRICS_ENABLED")},
		Capture:       *capture,
		LogLevel:      v.GetString("LOG_LEVEL"),
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid SERVER_PORT %d", cfg.Server.Port)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CaptureFromViper reads only the CAPTURE_* keys. The replay CLI uses it directly.
func CaptureFromViper(v *viper.Viper) (*CaptureConfig, error) {
	home, err := common.ParseCurrency(v.GetString("CAPTURE_HOME_CURRENCY"))
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTURE_HOME_CURRENCY: %w", err)
	}

	tolerance, err := decimal.NewFromString(strings.TrimSpace(v.GetString("CAPTURE_AMOUNT_TOLERANCE")))
	if err != nil || tolerance.IsNegative() {
		return nil, fmt.Errorf("invalid CAPTURE_AMOUNT_TOLERANCE %q", v.GetString("CAPTURE_AMOUNT_TOLERANCE"))
	}

	threshold := v.GetFloat64("CAPTURE_SIMILARITY_THRESHOLD")
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("CAPTURE_SIMILARITY_THRESHOLD must be within [0,1], got %v", threshold)
	}

	window := v.GetDuration("CAPTURE_DEDUP_WINDOW")
	if window <= 0 {
		return nil, fmt.Errorf("CAPTURE_DEDUP_WINDOW must be positive, got %s", window)
	}

	rawRates := strings.TrimSpace(v.GetString("CAPTURE_RATES"))
	if rawRates == "" {
		if home != common.CurrencyRSD {
			return nil, fmt.Errorf("CAPTURE_RATES is required when CAPTURE_HOME_CURRENCY is %s", home)
		}
		rawRates = DefaultDinarRates
	}
	rateMap, err := rates.ParseList(rawRates)
	if err != nil {
		return nil, fmt.Errorf("invalid CAPTURE_RATES: %w", err)
	}
	if _, err := rates.NewTable(home, rateMap); err != nil {
		return nil, fmt.Errorf("invalid CAPTURE_RATES: %w", err)
	}

	return &CaptureConfig{
		HomeCurrency:        home,
		Workers:             v.GetInt("CAPTURE_WORKERS"),
		QueueSize:           v.GetInt("CAPTURE_QUEUE_SIZE"),
		DedupWindow:         window,
		AmountTolerance:     tolerance,
		SimilarityThreshold: threshold,
		RewardCredit:        v.GetInt("CAPTURE_REWARD_CREDIT"),
		StrictDedup:         v.GetBool("CAPTURE_STRICT_DEDUP"),
		RulesFile:           v.GetString("CAPTURE_RULES_FILE"),
		Rates:               rateMap,
	}, nil
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(raw))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", raw, err)
	}
	return level, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
