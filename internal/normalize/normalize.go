// Package normalize derives the vendor identity key used to deduplicate
// transactions and to join classifications against the evaluation set.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Vendor folds case, strips accents and punctuation, and collapses
// whitespace. It is pure and idempotent: Vendor(Vendor(s)) == Vendor(s).
//
// Apostrophes and periods are deleted so possessives and abbreviations stay
// one word ("Joe's" -> "joes", "U.S." -> "us"); every other non-alphanumeric
// rune separates words.
func Vendor(s string) string {
	// Transformers carry state, so each call builds its own chain.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	folded := cases.Fold().String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case isJoiner(r):
			// dropped
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

func isJoiner(r rune) bool {
	switch r {
	case '\'', '’', '‘', '`', '.':
		return true
	}
	return false
}

// ContainsPhrase reports whether the normalized phrase appears in text as a
// run of whole words. Both arguments are normalized first.
func ContainsPhrase(text, phrase string) bool {
	p := Vendor(phrase)
	if p == "" {
		return false
	}
	return strings.Contains(" "+Vendor(text)+" ", " "+p+" ")
}

// ContainsAnyPhrase returns the first phrase found in text.
func ContainsAnyPhrase(text string, phrases []string) (string, bool) {
	normalized := " " + Vendor(text) + " "
	for _, phrase := range phrases {
		p := Vendor(phrase)
		if p == "" {
			continue
		}
		if strings.Contains(normalized, " "+p+" ") {
			return phrase, true
		}
	}
	return "", false
}
