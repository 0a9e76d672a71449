package services

import (
	"strings"
	"unicode"
)

// NormalizeName canonicalizes an entity name for comparison: lower-cases it
// and strips punctuation and whitespace so "Sales Order", "sales_order" and
// "SalesOrder" all compare equal. Total function: garbage input yields the
// empty string.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
