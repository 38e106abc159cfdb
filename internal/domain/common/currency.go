package common

import (
	"fmt"
	"strings"
)

// Currency is a canonical ISO 4217 code known to the pipeline.
type Currency string

const (
	CurrencyRSD Currency = "RSD"
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
	CurrencyBAM Currency = "BAM"
)

var knownCurrencies = map[Currency]struct{}{
	CurrencyRSD: {},
	CurrencyEUR: {},
	CurrencyUSD: {},
	CurrencyGBP: {},
	CurrencyCHF: {},
	CurrencyBAM: {},
}

// ParseCurrency validates an ISO code.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if _, ok := knownCurrencies[c]; !ok {
		return "", fmt.Errorf("unsupported currency %q", code)
	}
	return c, nil
}
