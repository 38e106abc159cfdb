// Package classifier infers transaction direction and spending category from alert text.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// typeRule is one row of the ordered type table.
type typeRule struct {
	keywords []string
	result   common.TransactionType
}

// TypeClassifier resolves Expense vs Income. Income keywords are checked first.
type TypeClassifier struct {
	rules []typeRule
}

func NewTypeClassifier(tables *rules.Tables) *TypeClassifier {
	return &TypeClassifier{
		rules: []typeRule{
			{keywords: tables.IncomeKeywords(), result: common.TypeIncome},
			{keywords: tables.ExpenseKeywords(), result: common.TypeExpense},
		},
	}
}

// Classify returns the type of the first rule with a keyword hit, Expense when none hits.
func (c *TypeClassifier) Classify(text string) common.TransactionType {
	lower := strings.ToLower(text)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if containsWord(lower, kw) {
				return r.result
			}
		}
	}
	return common.TypeExpense
}

// containsWord reports whether kw occurs in text at the start of a word, so "isplata" does not
// count as "plata".
func containsWord(text, kw string) bool {
	if kw == "" {
		return false
	}
	offset := 0
	for {
		i := strings.Index(text[offset:], kw)
		if i < 0 {
			return false
		}
		pos := offset + i
		if pos == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:pos])
		if !unicode.IsLetter(prev) {
			return true
		}
		offset = pos + len(kw)
	}
}
