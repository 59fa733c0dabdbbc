package game

import (
	"strings"

	"golang.org/x/text/cases"
)

// answerMatches is exact equality after trimming and Unicode case folding.
// No fuzzy or semantic matching is attempted.
func answerMatches(given, hidden string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(given)) == fold.String(strings.TrimSpace(hidden))
}
