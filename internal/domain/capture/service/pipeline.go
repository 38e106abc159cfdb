package service

import (
	"log/slog"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/classifier"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/filter"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/merchant"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/normalizer"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// Pipeline is the side-effect free part of capture: filter, parse, classify, describe.
// Every stage is immutable after construction, so one Pipeline is shared by all workers.
type Pipeline struct {
	filter     *filter.EventFilter
	amounts    *normalizer.Extractor
	currency   *normalizer.CurrencyNormalizer
	types      *classifier.TypeClassifier
	categories *classifier.CategoryClassifier
	merchants  *merchant.Extractor
	reward     int
	logger     *slog.Logger
}

// NewPipeline wires the parsing stages from one set of tables.
func NewPipeline(tables *rules.Tables, currency *normalizer.CurrencyNormalizer, rewardCredit int, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		filter:     filter.New(tables),
		amounts:    normalizer.NewExtractor(tables, logger),
		currency:   currency,
		types:      classifier.NewTypeClassifier(tables),
		categories: classifier.NewCategoryClassifier(tables),
		merchants:  merchant.NewExtractor(tables),
		reward:     rewardCredit,
		logger:     logger,
	}
}

// Parse turns an event into a candidate. A nil candidate comes with OutcomeRejected or
// OutcomeUnparsed; err is set only when currency conversion failed.
func (p *Pipeline) Parse(event common.NotificationEvent) (*common.CandidateTransaction, Outcome, error) {
	if event.SourceKind == "" {
		event.SourceKind = common.SourceNotification
	}
	if reason := p.filter.Check(event); reason != filter.ReasonAccepted {
		p.logger.Debug("event filtered", "package", event.SourcePackage, "reason", reason)
		return nil, OutcomeRejected, nil
	}

	text := event.FullText()
	raw, ok := p.amounts.Extract(text)
	if !ok {
		p.logger.Debug("no amount in event", "package", event.SourcePackage)
		return nil, OutcomeUnparsed, nil
	}

	amount, err := p.currency.Normalize(raw)
	if err != nil {
		return nil, OutcomeFailed, err
	}

	txType := p.types.Classify(text)

	var merchantPtr *string
	name, hasMerchant := p.merchants.Extract(text)
	if hasMerchant {
		merchantPtr = &name
	}

	candidate := &common.CandidateTransaction{
		Amount:       amount.Value,
		Currency:     amount.Currency,
		Type:         txType,
		Category:     p.categories.Classify(text, name, txType),
		Merchant:     merchantPtr,
		Description:  merchant.Describe(text, name, amount),
		Timestamp:    event.PostedAt(),
		SourceKind:   event.SourceKind,
		RewardCredit: p.reward,
	}
	if amount.Original != nil {
		orig := amount.Original.Value
		origCur := amount.Original.Currency
		candidate.OriginalAmount = &orig
		candidate.OriginalCurrency = &origCur
	}
	return candidate, OutcomeCaptured, nil
}
