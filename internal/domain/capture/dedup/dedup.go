// Package dedup decides whether a candidate repeats a recently captured transaction.
// Banks often announce one card payment through both a push notification and an SMS.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// RecentQuerier is the read side of the storage collaborator.
type RecentQuerier interface {
	QueryRecentBySource(ctx context.Context, since time.Time, kind common.SourceKind) ([]common.Transaction, error)
}

// Config holds the matching thresholds.
type Config struct {
	Window              time.Duration
	AmountTolerance     decimal.Decimal
	SimilarityThreshold float64
}

// DefaultConfig is a 5 minute window, 0.01 absolute amount tolerance and 0.7 merchant similarity.
func DefaultConfig() Config {
	return Config{
		Window:              5 * time.Minute,
		AmountTolerance:     decimal.New(1, -2),
		SimilarityThreshold: 0.7,
	}
}

// Match describes why a candidate was flagged.
type Match struct {
	Existing   common.Transaction
	Similarity float64 // -1 when one side has no merchant
}

// Deduplicator compares candidates against the recent history of both source channels.
type Deduplicator struct {
	store  RecentQuerier
	cfg    Config
	logger *slog.Logger
}

func New(store RecentQuerier, cfg Config, logger *slog.Logger) *Deduplicator {
	return &Deduplicator{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// IsDuplicate reports whether candidate repeats a transaction already stored.
func (d *Deduplicator) IsDuplicate(ctx context.Context, candidate common.CandidateTransaction) (bool, error) {
	m, err := d.FindDuplicate(ctx, candidate)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// FindDuplicate returns the first stored transaction candidate duplicates, or nil.
func (d *Deduplicator) FindDuplicate(ctx context.Context, candidate common.CandidateTransaction) (*Match, error) {
	since := candidate.Timestamp.Add(-d.cfg.Window)

	for _, kind := range []common.SourceKind{candidate.SourceKind, candidate.SourceKind.Paired()} {
		recent, err := d.store.QueryRecentBySource(ctx, since, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to query recent %s transactions: %w", kind, err)
		}

		for _, existing := range recent {
			if m, ok := d.matches(candidate, existing); ok {
				d.logger.Debug("duplicate candidate",
					"existing_id", existing.ID,
					"source", kind,
					"similarity", m.Similarity,
				)
				return m, nil
			}
		}
	}
	return nil, nil
}

func (d *Deduplicator) matches(candidate common.CandidateTransaction, existing common.Transaction) (*Match, bool) {
	delta := candidate.Timestamp.Sub(existing.Timestamp)
	if delta < 0 {
		delta = -delta
	}
	if delta > d.cfg.Window {
		return nil, false
	}

	if candidate.Amount.Sub(existing.Amount).Abs().GreaterThan(d.cfg.AmountTolerance) {
		return nil, false
	}

	a, b := candidate.MerchantName(), existing.MerchantName()
	if a == "" || b == "" {
		return &Match{Existing: existing, Similarity: -1}, true
	}

	sim := Similarity(a, b)
	if sim < d.cfg.SimilarityThreshold {
		return nil, false
	}
	return &Match{Existing: existing, Similarity: sim}, true
}
