// Package normalize implements the string normalization every Filter
// Pipeline stage and the Query Engine share (spec §4.C): NFKD
// decomposition, lowercasing, quote/dash stripping, bracket stripping,
// and whitespace collapse.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nfkdTransformer = norm.NFKD

// String applies the full normalization pipeline to s and is
// idempotent: String(String(x)) == String(x) (spec §8 round-trip law).
func String(s string) string {
	decomposed, _, err := transform.String(nfkdTransformer, s)
	if err != nil {
		decomposed = s
	}

	decomposed = stripDiacritics(decomposed)
	decomposed = strings.ToLower(decomposed)
	decomposed = stripQuotesAndDashes(decomposed)
	decomposed = stripBrackets(decomposed)
	decomposed = collapseWhitespace(decomposed)

	return strings.TrimSpace(decomposed)
}

// stripDiacritics drops the combining marks NFKD exposed, leaving the
// base letters behind ("café" -> "cafe").
func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var quoteAndDashRunes = map[rune]struct{}{
	'\'': {}, '"': {}, '‘': {}, '’': {}, '“': {}, '”': {},
	'`': {}, '-': {}, '‐': {}, '‑': {}, '‒': {}, '–': {}, '—': {}, '―': {},
}

func stripQuotesAndDashes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if _, drop := quoteAndDashRunes[r]; drop {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripBrackets removes bracket characters but keeps their contents,
// e.g. "[Lobby]" -> "Lobby".
func stripBrackets(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '[', ']', '(', ')', '{', '}':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Equal reports whether a and b are equal after normalization.
func Equal(a, b string) bool {
	return String(a) == String(b)
}

// Contains reports whether normalized haystack contains normalized
// needle (used by blacklist/contains filter modes, §4.C stage 2/4).
func Contains(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(String(haystack), String(needle))
}
