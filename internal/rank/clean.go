// Package rank scores fetched documents against a query and keeps the
// most relevant ones.
package rank

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinContentChars is the shortest cleaned text still worth scoring.
const MinContentChars = 50

// Clean collapses every whitespace run to a single space. Decomposed
// characters are composed (NFC) so accented letters count as one rune;
// compatibility forms such as ligatures are left as written. Results
// shorter than minChars runes come back empty.
func Clean(text string, minChars int) string {
	cleaned := strings.Join(strings.Fields(norm.NFC.String(text)), " ")
	if utf8.RuneCountInString(cleaned) < minChars {
		return ""
	}
	return cleaned
}

// Truncate returns at most maxChars runes of text. A non-positive limit
// leaves text unchanged.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	runes := []rune(text)
	return string(runes[:maxChars])
}
