// Package similarity implements the fuzzy matching used by duplicate detection.
package similarity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Trigrams returns the trigram set of s the way pg_trgm builds it: the text is
// lower-cased and split into alphanumeric words, each word is padded with two
// leading blanks and one trailing blank, and every 3-rune window is collected.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity is the trigram similarity of a and b: shared trigrams over the
// size of the union. Returns 0 when either side has no trigrams.
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}

// Thresholds is a (length ratio, trigram similarity) pair. Both bounds are exclusive.
type Thresholds struct {
	Length     float64
	Similarity float64
}

// Similar reports whether a and b are proportionally close in length and
// textually similar. Two empty strings never match.
func Similar(a, b string, t Thresholds) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	return similarWithLengths(a, la, b, lb, t)
}

func similarWithLengths(a string, la int, b string, lb int, t Thresholds) bool {
	lo, hi := la, lb
	if lo > hi {
		lo, hi = hi, lo
	}
	if hi == 0 {
		return false
	}
	if float64(lo)/float64(hi) <= t.Length {
		return false
	}
	return Similarity(a, b) > t.Similarity
}
