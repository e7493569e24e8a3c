package receipt

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphanumeric = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// normalizeName lower-cases, strips diacritics and turns punctuation runs
// into single spaces: "ALDI SÜD GmbH & Co." becomes "aldi sud gmbh co".
func normalizeName(s string) string {
	// transformers carry state, so build a fresh chain per call
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = nonAlphanumeric.ReplaceAllString(folded, " ")
	return strings.Join(strings.Fields(folded), " ")
}

// nameTokens returns the distinct normalized words of s
func nameTokens(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, t := range strings.Fields(normalizeName(s)) {
		tokens[t] = struct{}{}
	}
	return tokens
}

// tokenSimilarity is the share of shared words between two names, relative
// to the larger word set. It is 0 when either side has no words.
func tokenSimilarity(a, b string) float64 {
	return tokenOverlap(nameTokens(a), nameTokens(b))
}

func tokenOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if _, ok := b[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(a), len(b)))
}
