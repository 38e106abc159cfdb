package dedup

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
)

// Similarity is 1 - levenshtein(a, b) / max(len(a), len(b)) over case-folded runes.
func Similarity(a, b string) float64 {
	folder := cases.Fold()
	a, b = folder.String(a), folder.String(b)

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
