package normalizer

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
)

// RawAmount is an amount as written in the text, before currency resolution.
type RawAmount struct {
	Value   decimal.Decimal
	Token   string
	Style   NumberStyle
	Pattern string
}

// Extractor finds the transaction amount in notification text.
type Extractor struct {
	patterns []rules.AmountPattern
	logger   *slog.Logger
}

func NewExtractor(tables *rules.Tables, logger *slog.Logger) *Extractor {
	return &Extractor{
		patterns: tables.AmountPatterns(),
		logger:   logger,
	}
}

// Extract applies the amount patterns in order and returns the first positive match.
// Zero figures such as fees or balances are skipped. ok is false when nothing qualifies.
func (e *Extractor) Extract(text string) (RawAmount, bool) {
	for _, p := range e.patterns {
		amountIdx := p.Regexp.SubexpIndex("amount")
		currencyIdx := p.Regexp.SubexpIndex("currency")

		for _, m := range p.Regexp.FindAllStringSubmatch(text, -1) {
			value, style, err := ParseAmount(m[amountIdx], p.Mode)
			if err != nil {
				e.logger.Debug("amount token rejected", "pattern", p.Name, "token", m[amountIdx], "error", err)
				continue
			}
			if !value.IsPositive() {
				e.logger.Debug("non-positive amount skipped", "pattern", p.Name, "token", m[amountIdx])
				continue
			}
			return RawAmount{
				Value:   value,
				Token:   m[currencyIdx],
				Style:   style,
				Pattern: p.Name,
			}, true
		}
	}
	return RawAmount{}, false
}
