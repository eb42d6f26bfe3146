package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold reduces a name or ID to its search form: no diacritics, case-folded,
// with dashes and underscores read as spaces ("Novák-Dvořák" -> "novak dvorak").
func Fold(s string) string {
	// Transformers are stateful, so the chain is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), cases.Fold(), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = strings.ToLower(s)
	}
	folded = strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// MatchesQuery reports whether every word of query occurs in the subject's name or ID.
// An empty query matches every subject.
func MatchesQuery(name, id, query string) bool {
	words := strings.Fields(Fold(query))
	if len(words) == 0 {
		return true
	}
	haystack := Fold(name) + " " + Fold(id)
	for _, w := range words {
		if !strings.Contains(haystack, w) {
			return false
		}
	}
	return true
}
