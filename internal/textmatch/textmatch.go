// Package textmatch normalizes free text and scores how closely two
// strings resemble each other.
//
// All comparisons run on folded text: trimmed, lower-cased and stripped of
// combining marks, so "Sí" and "si" are the same string here.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize trims surrounding whitespace and lower-cases text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// StripDiacritics decomposes text and drops nonspacing marks.
func StripDiacritics(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}

// Fold is Normalize followed by StripDiacritics.
func Fold(text string) string {
	return StripDiacritics(Normalize(text))
}

// Similarity returns the sequence-matching ratio 2*M/T of the folded inputs,
// where M is the number of matched runes and T the combined length.
// It returns 0 when either side is empty after folding.
func Similarity(a, b string) float64 {
	fa, fb := Fold(a), Fold(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}
	m := difflib.NewMatcher(splitRunes(fa), splitRunes(fb))
	return m.Ratio()
}

// ContainsAny reports the first phrase that occurs in text after both sides
// are folded.
func ContainsAny(text string, phrases []string) (string, bool) {
	ft := Fold(text)
	if ft == "" {
		return "", false
	}
	for _, p := range phrases {
		fp := Fold(p)
		if fp != "" && strings.Contains(ft, fp) {
			return p, true
		}
	}
	return "", false
}

// EqualsAny reports whether folded text equals one of the folded phrases.
func EqualsAny(text string, phrases []string) bool {
	ft := Fold(text)
	for _, p := range phrases {
		if ft == Fold(p) {
			return true
		}
	}
	return false
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
