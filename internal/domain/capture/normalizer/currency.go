package normalizer

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// RateProvider returns the multiplier converting one unit of currency into the home currency.
type RateProvider interface {
	Rate(currency common.Currency) (decimal.Decimal, error)
}

// CurrencyNormalizer resolves currency tokens and converts foreign amounts to the home currency.
type CurrencyNormalizer struct {
	tables *rules.Tables
	home   common.Currency
	rates  RateProvider
}

func NewCurrencyNormalizer(tables *rules.Tables, home common.Currency, rates RateProvider) *CurrencyNormalizer {
	return &CurrencyNormalizer{
		tables: tables,
		home:   home,
		rates:  rates,
	}
}

// Home returns the canonical currency.
func (n *CurrencyNormalizer) Home() common.Currency {
	return n.home
}

// Resolve maps a raw token to a currency. Unknown tokens fall back to the home currency.
func (n *CurrencyNormalizer) Resolve(token string) common.Currency {
	if cur, ok := n.tables.LookupCurrency(token); ok {
		return cur
	}
	return n.home
}

// Normalize converts raw into the home currency, keeping the original when a conversion happened.
func (n *CurrencyNormalizer) Normalize(raw RawAmount) (common.ParsedAmount, error) {
	cur := n.Resolve(raw.Token)
	if cur == n.home {
		return common.ParsedAmount{Value: raw.Value, Currency: n.home}, nil
	}

	rate, err := n.rates.Rate(cur)
	if err != nil {
		return common.ParsedAmount{}, fmt.Errorf("failed to convert %s: %w", cur, err)
	}
	if !rate.IsPositive() {
		return common.ParsedAmount{}, fmt.Errorf("%w: non-positive rate for %s", common.ErrRateUnavailable, cur)
	}

	return common.ParsedAmount{
		Value:    raw.Value.Mul(rate).Round(2),
		Currency: n.home,
		Original: &common.Money{Value: raw.Value, Currency: cur},
	}, nil
}
