package usecase

import "strings"

// NormalizeQuery trims the text and collapses internal whitespace runs to a
// single space. No semantic rewriting, no case folding. Idempotent.
func NormalizeQuery(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
