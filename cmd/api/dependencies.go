package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/dedup"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/handler"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/normalizer"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rates"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/repository"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/service"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/config"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/db"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config *config.Config
	DB     *db.DB
	Logger *slog.Logger

	// Repositories
	CaptureRepo *repository.PostgresCaptureRepository

	// Services
	Rates          *rates.Table
	Tables         *rules.Tables
	CaptureService *service.CaptureService
	Dispatcher     *service.Dispatcher

	// Handlers
	CaptureHandler *handler.CaptureHandler

	cancel context.CancelFunc
}

// InitDependencies initializes all application dependencies
func InitDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize database
	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	// Initialize repositories
	if err := deps.initRepositories(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	// Initialize services
	if err := deps.initServices(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	// Initialize handlers
	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	// Run migrations
	if err := d.DB.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.CaptureRepo = repository.NewPostgresCaptureRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices builds the capture pipeline and starts the worker pool
func (d *Dependencies) initServices() error {
	captureCfg := d.Config.Capture

	tables, err := rules.LoadFile(captureCfg.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load capture rules: %w", err)
	}
	d.Tables = tables

	d.Rates, err = rates.NewTable(captureCfg.HomeCurrency, captureCfg.Rates)
	if err != nil {
		return fmt.Errorf("failed to build rate table: %w", err)
	}

	pipeline, err := BuildPipeline(tables, d.Rates, captureCfg, d.Logger)
	if err != nil {
		return err
	}

	deduplicator := dedup.New(d.CaptureRepo, DedupConfig(captureCfg), d.Logger)
	d.CaptureService = service.NewCaptureService(
		pipeline,
		deduplicator,
		d.CaptureRepo,
		service.NewLogAcknowledger(d.Logger),
		service.Config{StrictDedup: captureCfg.StrictDedup},
		d.Logger,
	)

	d.Dispatcher = service.NewDispatcher(d.CaptureService, captureCfg.Workers, captureCfg.QueueSize, d.Logger)
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.Dispatcher.Start(ctx)

	d.Logger.Info("services initialized",
		"home_currency", captureCfg.HomeCurrency,
		"strict_dedup", captureCfg.StrictDedup,
		"rules_file", captureCfg.RulesFile,
	)
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.CaptureHandler = handler.NewCaptureHandler(d.Dispatcher, d.CaptureRepo, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// BuildPipeline wires the parsing stages for cfg. Shared with the replay CLI.
func BuildPipeline(tables *rules.Tables, provider normalizer.RateProvider, cfg config.CaptureConfig, logger *slog.Logger) (*service.Pipeline, error) {
	if cfg.RewardCredit < 0 {
		return nil, fmt.Errorf("reward credit must not be negative, got %d", cfg.RewardCredit)
	}
	currency := normalizer.NewCurrencyNormalizer(tables, cfg.HomeCurrency, provider)
	return service.NewPipeline(tables, currency, cfg.RewardCredit, logger), nil
}

// DedupConfig maps capture settings onto the deduplicator.
func DedupConfig(cfg config.CaptureConfig) dedup.Config {
	return dedup.Config{
		Window:              cfg.DedupWindow,
		AmountTolerance:     cfg.AmountTolerance,
		SimilarityThreshold: cfg.SimilarityThreshold,
	}
}

// Cleanup drains the worker pool and closes all resources
func (d *Dependencies) Cleanup() {
	if d.Dispatcher != nil {
		d.Dispatcher.Close()
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
