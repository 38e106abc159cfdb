package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

var ErrInvalidTables = errors.New("invalid rule tables")

// SeparatorMode tells the number parser how to read a token with a single separator kind.
type SeparatorMode int

const (
	// ModeDecimal treats a lone separator as the decimal point.
	ModeDecimal SeparatorMode = iota
	// ModeGrouped treats every separator as thousands grouping.
	ModeGrouped
	// ModeAuto decides from the digits that follow the last separator.
	ModeAuto
)

func (m SeparatorMode) String() string {
	switch m {
	case ModeDecimal:
		return "decimal"
	case ModeGrouped:
		return "grouped"
	default:
		return "auto"
	}
}

// AmountPattern captures named groups "amount" and "currency".
type AmountPattern struct {
	Name   string
	Regexp *regexp.Regexp
	Mode   SeparatorMode
}

// MerchantPattern captures a named group "merchant".
type MerchantPattern struct {
	Name   string
	Regexp *regexp.Regexp
}

// CategoryRule is one row of the ordered category table.
type CategoryRule struct {
	Category common.Category
	Keywords []string
}

// Tables is the compiled, read-only form of Config.
type Tables struct {
	bankPackages     map[string]struct{}
	smsPackages      map[string]struct{}
	smsSenders       []string
	aliases          map[string]common.Currency
	amountPatterns   []AmountPattern
	merchantPatterns []MerchantPattern
	incomeKeywords   []string
	expenseKeywords  []string
	categoryRules    []CategoryRule
}

// Default compiles DefaultConfig. The built-in tables are known to be valid.
func Default() *Tables {
	t, err := Compile(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return t
}

// Compile validates cfg and builds the ordered pattern lists.
func Compile(cfg Config) (*Tables, error) {
	t := &Tables{
		bankPackages: toSet(cfg.BankPackages),
		smsPackages:  toSet(cfg.SMSPackages),
		smsSenders:   lowerAll(cfg.SMSSenders),
		aliases:      make(map[string]common.Currency, len(cfg.CurrencyAliases)),
	}

	for token, code := range cfg.CurrencyAliases {
		cur, err := common.ParseCurrency(code)
		if err != nil {
			return nil, fmt.Errorf("%w: alias %q: %v", ErrInvalidTables, token, err)
		}
		t.aliases[normalizeToken(token)] = cur
	}
	if len(t.aliases) == 0 {
		return nil, fmt.Errorf("%w: no currency aliases", ErrInvalidTables)
	}

	minor := toSet(upperAll(cfg.MinorCurrencyTokens))
	var wordTokens, symbolTokens, minorTokens []string
	for token := range t.aliases {
		switch {
		case hasCurrencySymbol(token):
			symbolTokens = append(symbolTokens, token)
		case contains(minor, token):
			minorTokens = append(minorTokens, token)
		default:
			wordTokens = append(wordTokens, token)
		}
	}
	if len(wordTokens) == 0 || len(symbolTokens) == 0 || len(minorTokens) == 0 {
		return nil, fmt.Errorf("%w: currency aliases must include codes, symbols and minor tokens", ErrInvalidTables)
	}

	var err error
	t.amountPatterns, err = buildAmountPatterns(alternation(wordTokens), alternation(symbolTokens), alternation(minorTokens))
	if err != nil {
		return nil, err
	}
	t.merchantPatterns, err = buildMerchantPatterns(cfg.MerchantPrepositions, cfg.MerchantLabels,
		alternation(undotted(wordTokens, symbolTokens, minorTokens)))
	if err != nil {
		return nil, err
	}

	t.incomeKeywords = lowerAll(cfg.IncomeKeywords)
	t.expenseKeywords = lowerAll(cfg.ExpenseKeywords)

	for _, rc := range cfg.CategoryRules {
		if strings.TrimSpace(rc.Category) == "" || len(rc.Keywords) == 0 {
			return nil, fmt.Errorf("%w: category rule %q is empty", ErrInvalidTables, rc.Category)
		}
		t.categoryRules = append(t.categoryRules, CategoryRule{
			Category: common.Category(rc.Category),
			Keywords: lowerAll(rc.Keywords),
		})
	}

	return t, nil
}

const (
	leftGuard   = `(?:^|[^\d.,])`
	tokenGuard  = `(?:[^\pL\pN]|$)`
	wordStart   = `(?:^|[^\pL])`
	numberToken = `\d+(?:[.,]\d+)*`
)

// buildAmountPatterns returns the locale patterns in evaluation order. First match wins.
func buildAmountPatterns(words, symbols, minors string) ([]AmountPattern, error) {
	cur := `(?P<currency>` + words + `|` + symbols + `)`
	specs := []struct {
		name string
		expr string
		mode SeparatorMode
	}{
		{"thousands-dot-decimal-comma", leftGuard + `(?P<amount>\d{1,3}(?:\.\d{3})+,\d{1,2})\s*` + cur + tokenGuard, ModeDecimal},
		{"decimal-comma", leftGuard + `(?P<amount>\d+,\d{1,2})\s*` + cur + tokenGuard, ModeDecimal},
		{"thousands-comma-decimal-dot", leftGuard + `(?P<amount>\d{1,3}(?:,\d{3})+\.\d{1,2})\s*` + cur + tokenGuard, ModeDecimal},
		{"decimal-dot", leftGuard + `(?P<amount>\d+\.\d{1,2})\s*` + cur + tokenGuard, ModeDecimal},
		{"grouped-integer", leftGuard + `(?P<amount>\d{1,3}(?:[.,]\d{3})+|\d+)\s*` + cur + tokenGuard, ModeGrouped},
		{"symbol-prefix", `(?P<currency>` + symbols + `)\s*(?P<amount>` + numberToken + `)`, ModeAuto},
		{"symbol-suffix", leftGuard + `(?P<amount>` + numberToken + `)\s*(?P<currency>` + symbols + `)`, ModeAuto},
		{"minor-currency-suffix", leftGuard + `(?P<amount>` + numberToken + `)\s*(?P<currency>` + minors + `)` + tokenGuard, ModeAuto},
		{"code-prefix", wordStart + `(?P<currency>` + words + `)\s*(?P<amount>` + numberToken + `)`, ModeAuto},
	}

	patterns := make([]AmountPattern, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile(`(?i)` + s.expr)
		if err != nil {
			return nil, fmt.Errorf("%w: amount pattern %s: %v", ErrInvalidTables, s.name, err)
		}
		patterns = append(patterns, AmountPattern{Name: s.name, Regexp: re, Mode: s.mode})
	}
	return patterns, nil
}

// buildMerchantPatterns returns merchant patterns in evaluation order: preposition, label,
// then the text trailing a currency token.
func buildMerchantPatterns(prepositions, labels []string, currencies string) ([]MerchantPattern, error) {
	const capture = `(?P<merchant>[\p{Lu}\d][^\n,;:]*)`
	var specs []struct{ name, expr string }
	if len(prepositions) > 0 {
		specs = append(specs, struct{ name, expr string }{
			"preposition", wordStart + `(?i:` + alternation(upperAll(prepositions)) + `)\s+` + capture,
		})
	}
	if len(labels) > 0 {
		specs = append(specs, struct{ name, expr string }{
			"label", `(?i:` + alternation(upperAll(labels)) + `)\s*[:\-]\s*(?P<merchant>[^\n,;:]+)`,
		})
	}
	specs = append(specs, struct{ name, expr string }{
		"trailing-currency", `\d(?:\s*)(?i:` + currencies + `)\s+` + capture,
	})

	patterns := make([]MerchantPattern, 0, len(specs))
	for _, s := range specs {
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, fmt.Errorf("%w: merchant pattern %s: %v", ErrInvalidTables, s.name, err)
		}
		patterns = append(patterns, MerchantPattern{Name: s.name, Regexp: re})
	}
	return patterns, nil
}

// IsWhitelistedPackage reports whether pkg is a known bank or SMS app.
func (t *Tables) IsWhitelistedPackage(pkg string) bool {
	_, bank := t.bankPackages[pkg]
	return bank || t.IsSMSPackage(pkg)
}

// IsSMSPackage reports whether pkg is a messaging app rather than a bank app.
func (t *Tables) IsSMSPackage(pkg string) bool {
	_, ok := t.smsPackages[pkg]
	return ok
}

// SMSSenders returns the lower-cased bank sender identifiers.
func (t *Tables) SMSSenders() []string {
	return append([]string(nil), t.smsSenders...)
}

// LookupCurrency resolves a raw token through the alias table.
func (t *Tables) LookupCurrency(token string) (common.Currency, bool) {
	key := normalizeToken(token)
	if cur, ok := t.aliases[key]; ok {
		return cur, true
	}
	cur, ok := t.aliases[strings.TrimSuffix(key, ".")]
	return cur, ok
}

func (t *Tables) AmountPatterns() []AmountPattern {
	return append([]AmountPattern(nil), t.amountPatterns...)
}

func (t *Tables) MerchantPatterns() []MerchantPattern {
	return append([]MerchantPattern(nil), t.merchantPatterns...)
}

func (t *Tables) IncomeKeywords() []string {
	return append([]string(nil), t.incomeKeywords...)
}

func (t *Tables) ExpenseKeywords() []string {
	return append([]string(nil), t.expenseKeywords...)
}

// CategoryRules returns the category table in evaluation order.
func (t *Tables) CategoryRules() []CategoryRule {
	out := make([]CategoryRule, len(t.categoryRules))
	for i, r := range t.categoryRules {
		out[i] = CategoryRule{Category: r.Category, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// alternation quotes tokens and orders them longest first so "DINARA" wins over "DIN".
func alternation(tokens []string) string {
	sorted := append([]string(nil), tokens...)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := len([]rune(sorted[i])), len([]rune(sorted[j]))
		if li != lj {
			return li > lj
		}
		return sorted[i] < sorted[j]
	})
	quoted := make([]string, len(sorted))
	for i, tok := range sorted {
		quoted[i] = regexp.QuoteMeta(tok)
	}
	return `(?:` + strings.Join(quoted, `|`) + `)`
}

// undotted drops abbreviations like "KM." whose dot may end a sentence ("5 km. Placeno ...").
func undotted(groups ...[]string) []string {
	var out []string
	for _, g := range groups {
		for _, tok := range g {
			if !strings.HasSuffix(tok, ".") {
				out = append(out, tok)
			}
		}
	}
	return out
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func hasCurrencySymbol(token string) bool {
	for _, r := range token {
		if unicode.Is(unicode.Sc, r) {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			set[it] = struct{}{}
		}
	}
	return set
}

func contains(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.ToLower(strings.TrimSpace(it)); it != "" {
			out = append(out, it)
		}
	}
	return out
}

func upperAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = normalizeToken(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}
