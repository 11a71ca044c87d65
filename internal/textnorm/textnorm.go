// Package textnorm canonicalizes question and answer text so that
// equality checks for deduplication and answer merging are stable.
package textnorm

import (
	"strings"
	"unicode"
)

// SentenceCase upper-cases the first letter at the start of the string and
// after each sentence terminator (. ! ?). All other runes are preserved,
// so proper-noun casing entered by an admin survives.
func SentenceCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	capitalize := true
	for _, r := range s {
		switch {
		case capitalize && unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		case r == '.' || r == '!' || r == '?':
			b.WriteRune(r)
			capitalize = true
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeQuestion trims surrounding whitespace and sentence-cases the
// text. Question uniqueness compares this form case-sensitively: two
// questions differing only in interior capitalization stay distinct.
func NormalizeQuestion(s string) string {
	return SentenceCase(strings.TrimSpace(s))
}

// NormalizeAnswer trims and lower-cases answer text. Answer matching is
// case-insensitive: "Paris" and "paris" count as the same response.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
