// Package service provides the capture orchestration logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/dedup"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/repository"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/pkg/observability"
)

var ErrPipelinePanic = errors.New("capture pipeline panicked")

// Outcome is what happened to one event.
type Outcome string

const (
	OutcomeRejected  Outcome = "rejected"
	OutcomeUnparsed  Outcome = "unparsed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeCaptured  Outcome = "captured"
	OutcomeFailed    Outcome = "failed"
)

// Acknowledger is told about every persisted capture.
type Acknowledger interface {
	Acknowledge(ctx context.Context, id uuid.UUID, credit int)
}

// LogAcknowledger grants the reward credit by logging it and counting it in Prometheus.
type LogAcknowledger struct {
	logger *slog.Logger
}

func NewLogAcknowledger(logger *slog.Logger) *LogAcknowledger {
	return &LogAcknowledger{logger: logger}
}

func (a *LogAcknowledger) Acknowledge(_ context.Context, id uuid.UUID, credit int) {
	observability.RewardCreditsTotal.Add(float64(credit))
	a.logger.Info("transaction captured", "id", id, "reward_credit", credit)
}

// Config tunes the orchestrator.
type Config struct {
	// StrictDedup serialises check-then-insert so concurrent duplicates cannot both pass.
	StrictDedup bool
}

// CaptureService orchestrates filter, parsing, dedup and persistence for single events.
type CaptureService struct {
	pipeline *Pipeline
	dedup    *dedup.Deduplicator
	repo     repository.TransactionRepository
	ack      Acknowledger
	cfg      Config
	tracer   trace.Tracer
	logger   *slog.Logger

	mu sync.Mutex // held around check-then-insert in strict mode
}

// NewCaptureService creates a new capture service
func NewCaptureService(pipeline *Pipeline, dd *dedup.Deduplicator, repo repository.TransactionRepository, ack Acknowledger, cfg Config, logger *slog.Logger) *CaptureService {
	return &CaptureService{
		pipeline: pipeline,
		dedup:    dd,
		repo:     repo,
		ack:      ack,
		cfg:      cfg,
		tracer:   otel.Tracer("capture/service"),
		logger:   logger,
	}
}

// Process runs one event through the pipeline. Failures are confined to this event:
// collaborator errors and panics both surface as OutcomeFailed.
func (s *CaptureService) Process(ctx context.Context, event common.NotificationEvent) (outcome Outcome, err error) {
	start := time.Now()
	source := string(event.SourceKind)
	if source == "" {
		source = string(common.SourceNotification)
	}

	ctx, span := s.tracer.Start(ctx, "capture.Process", trace.WithAttributes(
		attribute.String("capture.source", source),
		attribute.String("capture.package", event.SourcePackage),
	))
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeFailed
			err = fmt.Errorf("%w: %v", ErrPipelinePanic, r)
			s.logger.Error("capture pipeline panicked", "package", event.SourcePackage, "panic", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, string(outcome))
		}
		span.SetAttributes(attribute.String("capture.outcome", string(outcome)))
		span.End()

		observability.EventsTotal.WithLabelValues(source, string(outcome)).Inc()
		observability.PipelineDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	candidate, outcome, err := s.pipeline.Parse(event)
	if err != nil {
		s.logger.Warn("dropping event, currency conversion failed", "package", event.SourcePackage, "error", err)
		return OutcomeFailed, err
	}
	if candidate == nil {
		return outcome, nil
	}
	if err := candidate.Validate(); err != nil {
		s.logger.Warn("dropping invalid candidate", "package", event.SourcePackage, "error", err)
		return OutcomeFailed, err
	}

	return s.store(ctx, *candidate)
}

func (s *CaptureService) store(ctx context.Context, candidate common.CandidateTransaction) (Outcome, error) {
	if s.cfg.StrictDedup {
		s.mu.Lock()
		defer s.mu.Unlock()
	}

	match, err := s.dedup.FindDuplicate(ctx, candidate)
	if err != nil {
		s.logger.Error("dedup check failed, dropping event", "source", candidate.SourceKind, "error", err)
		return OutcomeFailed, err
	}
	if match != nil {
		s.logger.Info("duplicate transaction discarded",
			"source", candidate.SourceKind,
			"amount", candidate.Amount.StringFixed(2),
			"existing_id", match.Existing.ID,
		)
		return OutcomeDuplicate, nil
	}

	id, err := s.repo.Insert(ctx, candidate)
	if err != nil {
		s.logger.Error("failed to persist captured transaction", "source", candidate.SourceKind, "error", err)
		return OutcomeFailed, err
	}

	s.ack.Acknowledge(ctx, id, candidate.RewardCredit)
	return OutcomeCaptured, nil
}
