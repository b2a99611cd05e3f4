package grade

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Normalize canonicalizes an answer string for comparison: Unicode case
// folding followed by removal of all whitespace. Author intent is "same
// characters, any spacing", so internal whitespace is dropped entirely, not
// collapsed. Case folding is locale-independent and handles non-Latin
// scripts (the deployed answer keys are Cyrillic).
func Normalize(s string) string {
	folded := cases.Fold().String(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
