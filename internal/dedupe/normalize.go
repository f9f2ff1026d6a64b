package dedupe

import (
	"regexp"
	"strings"
)

var (
	nonWordRegex    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// Normalize canonicalizes s for comparison: lowercase, trimmed, stripped of
// anything that is not a word character or whitespace, with whitespace runs
// collapsed to a single space.
//
// Removing punctuation can expose new leading or trailing whitespace
// ("- intro" becomes " intro"), so the result is trimmed once more to keep
// Normalize idempotent.
func Normalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = nonWordRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
