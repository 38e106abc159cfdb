// Package merchant pulls a best-effort merchant name out of alert text and builds the
// human-readable transaction label.
package merchant

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/normalizer"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
)

const MaxLength = 50

var (
	sentenceEnd    = regexp.MustCompile(`\.\s.*$`)
	trailingClause = regexp.MustCompile(`(?i)\s+(?:dana|datuma|dne|on|stanje|raspolo\S*|balance|avail\S*|iznos\S*|kartic\S*|card)(?:\s.*)?$`)
	trailingRef    = regexp.MustCompile(`\s+[\d/.\-]+$`)
)

// Extractor applies the merchant patterns in order.
type Extractor struct {
	patterns []rules.MerchantPattern
}

func NewExtractor(tables *rules.Tables) *Extractor {
	return &Extractor{patterns: tables.MerchantPatterns()}
}

// Extract returns the first candidate that survives cleanup, or ok=false.
func (e *Extractor) Extract(text string) (string, bool) {
	for _, p := range e.patterns {
		idx := p.Regexp.SubexpIndex("merchant")
		for _, m := range p.Regexp.FindAllStringSubmatch(text, -1) {
			if name := Clean(m[idx]); Valid(name) {
				return Truncate(name, MaxLength), true
			}
		}
	}
	return "", false
}

// Clean drops trailing clauses (dates, balances, card numbers) and reference numbers.
func Clean(raw string) string {
	name := normalizer.CleanDescription(raw)
	name = sentenceEnd.ReplaceAllString(name, "")
	name = trailingClause.ReplaceAllString(name, "")
	for {
		next := trailingRef.ReplaceAllString(name, "")
		if next == name {
			break
		}
		name = next
	}
	return strings.Trim(name, " .,;:-")
}

// Valid requires at least two characters and something other than digits.
func Valid(name string) bool {
	if utf8.RuneCountInString(name) < 2 {
		return false
	}
	return strings.IndexFunc(name, unicode.IsLetter) >= 0
}

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit]))
}
