// Package normalizer turns free notification text into money.
// Handles the regional number formats seen in bank alerts and maps currency tokens to ISO codes.
package normalizer

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
)

var ErrInvalidAmount = errors.New("invalid amount format")

// NumberStyle is the separator convention a number was written in.
type NumberStyle int

const (
	StyleAmerican NumberStyle = iota // 1,234.56
	StyleEuropean                    // 1.234,56
)

// ParseAmount converts a numeric token into a decimal.
// The last separator present is the decimal point when both kinds occur. With one separator
// kind, mode decides between decimal point and thousands grouping.
func ParseAmount(raw string, mode rules.SeparatorMode) (decimal.Decimal, NumberStyle, error) {
	token := strings.TrimSpace(raw)
	if token == "" {
		return decimal.Zero, StyleAmerican, ErrInvalidAmount
	}
	for _, r := range token {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return decimal.Zero, StyleAmerican, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidAmount, r, raw)
		}
	}

	lastDot := strings.LastIndexByte(token, '.')
	lastComma := strings.LastIndexByte(token, ',')

	var cleaned string
	style := StyleAmerican
	switch {
	case lastDot < 0 && lastComma < 0:
		cleaned = token

	case lastDot >= 0 && lastComma >= 0:
		// 1.234,56 or 1,234.56
		decimalSep, groupSep := byte('.'), ","
		if lastComma > lastDot {
			decimalSep, groupSep = ',', "."
			style = StyleEuropean
		}
		cleaned = strings.ReplaceAll(token, groupSep, "")
		if strings.Count(cleaned, string(decimalSep)) > 1 {
			return decimal.Zero, style, fmt.Errorf("%w: repeated decimal separator in %q", ErrInvalidAmount, raw)
		}
		cleaned = strings.Replace(cleaned, string(decimalSep), ".", 1)

	default:
		sep := byte('.')
		last := lastDot
		if lastComma >= 0 {
			sep, last = ',', lastComma
		}
		count := strings.Count(token, string(sep))
		fraction := len(token) - last - 1

		grouping := false
		switch mode {
		case rules.ModeGrouped:
			grouping = true
		case rules.ModeAuto:
			grouping = count > 1 || fraction == 3
		}

		if grouping {
			cleaned = strings.ReplaceAll(token, string(sep), "")
			if sep == '.' {
				style = StyleEuropean
			}
		} else {
			intPart := strings.ReplaceAll(token[:last], string(sep), "")
			cleaned = intPart + "." + token[last+1:]
			if sep == ',' {
				style = StyleEuropean
			}
		}
	}

	if cleaned == "" || strings.HasPrefix(cleaned, ".") || strings.HasSuffix(cleaned, ".") {
		return decimal.Zero, style, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, style, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return value, style, nil
}

// FormatAmount renders value with two decimals in the given style, grouping thousands.
func FormatAmount(value decimal.Decimal, style NumberStyle) string {
	fixed := value.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	groupSep, decSep := ",", "."
	if style == StyleEuropean {
		groupSep, decSep = ".", ","
	}

	var b strings.Builder
	if value.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(groupSep)
		}
		b.WriteRune(r)
	}
	b.WriteString(decSep)
	b.WriteString(frac)
	return b.String()
}

var spacePattern = regexp.MustCompile(`\s+`)

// CleanDescription normalizes whitespace in free text.
func CleanDescription(raw string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
}
