package merchant

import (
	"fmt"
	"unicode/utf8"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/normalizer"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

const maxRawDescription = 100

// Describe labels a capture: the merchant when known, the foreign amount when converted,
// otherwise the raw text.
func Describe(text, merchant string, amount common.ParsedAmount) string {
	switch {
	case merchant != "" && amount.Converted():
		return fmt.Sprintf("Payment at %s (%s)", merchant, formatOriginal(amount.Original))
	case merchant != "":
		return "Payment at " + merchant
	case amount.Converted():
		return fmt.Sprintf("Transaction (%s)", formatOriginal(amount.Original))
	}

	raw := normalizer.CleanDescription(text)
	if utf8.RuneCountInString(raw) > maxRawDescription {
		return string([]rune(raw)[:maxRawDescription]) + "..."
	}
	return raw
}

func formatOriginal(m *common.Money) string {
	return m.Value.StringFixed(2) + " " + string(m.Currency)
}
