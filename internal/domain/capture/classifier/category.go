package classifier

import (
	"strings"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// CategoryClassifier evaluates the category table top to bottom. First hit wins.
type CategoryClassifier struct {
	rules []rules.CategoryRule
}

func NewCategoryClassifier(tables *rules.Tables) *CategoryClassifier {
	return &CategoryClassifier{rules: tables.CategoryRules()}
}

// Match returns the first matching category for text and merchant.
func (c *CategoryClassifier) Match(text, merchant string) (common.Category, bool) {
	haystack := strings.ToLower(text + " " + merchant)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(haystack, kw) {
				return r.Category, true
			}
		}
	}
	return "", false
}

// Classify is Match with the default category for txType when nothing matches.
func (c *CategoryClassifier) Classify(text, merchant string, txType common.TransactionType) common.Category {
	if cat, ok := c.Match(text, merchant); ok {
		return cat
	}
	if txType == common.TypeIncome {
		return common.CategoryOtherIncome
	}
	return common.CategoryOtherExpense
}
