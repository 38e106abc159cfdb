// Package rates holds the static exchange-rate table used to convert foreign amounts.
package rates

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// Table maps a currency to its multiplier into the home currency. Safe for concurrent use.
type Table struct {
	mu    sync.RWMutex
	home  common.Currency
	rates map[common.Currency]decimal.Decimal
}

// NewTable creates a table for home. The home currency always has rate 1 and may
// only appear in rates with that value.
func NewTable(home common.Currency, rates map[common.Currency]decimal.Decimal) (*Table, error) {
	t := &Table{home: home}
	if err := t.Replace(rates); err != nil {
		return nil, err
	}
	return t, nil
}

// Rate implements normalizer.RateProvider.
func (t *Table) Rate(currency common.Currency) (decimal.Decimal, error) {
	if currency == t.home {
		return decimal.NewFromInt(1), nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	rate, ok := t.rates[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", common.ErrRateUnavailable, currency)
	}
	return rate, nil
}

// Replace swaps the whole table. Invalid input leaves the current rates untouched.
func (t *Table) Replace(rates map[common.Currency]decimal.Decimal) error {
	next := make(map[common.Currency]decimal.Decimal, len(rates))
	for cur, rate := range rates {
		if !rate.IsPositive() {
			return fmt.Errorf("rate for %s must be positive, got %s", cur, rate)
		}
		if cur == t.home && !rate.Equal(decimal.NewFromInt(1)) {
			return fmt.Errorf("rate for home currency %s must be 1, got %s", cur, rate)
		}
		next[cur] = rate
	}

	t.mu.Lock()
	t.rates = next
	t.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current rates.
func (t *Table) Snapshot() map[common.Currency]decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[common.Currency]decimal.Decimal, len(t.rates))
	for k, v := range t.rates {
		out[k] = v
	}
	return out
}

// ParseList reads "EUR=117.2,USD=108.9" into a rate map.
func ParseList(raw string) (map[common.Currency]decimal.Decimal, error) {
	out := make(map[common.Currency]decimal.Decimal)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid rate entry %q", pair)
		}
		cur, err := common.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", cur, err)
		}
		out[cur] = rate
	}
	return out, nil
}
