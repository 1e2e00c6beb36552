// Package textsim holds the lexical similarity helpers shared by plan
// deduplication and finding corroboration.
package textsim

import (
	"strings"
	"unicode"
)

// Normalize lowercases s, strips punctuation and collapses whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words returns the set of normalized words in s.
func Words(s string) map[string]struct{} {
	fields := strings.Fields(Normalize(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// intersection counts words present in both sets.
func intersection(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}

// OverlapMax is |A∩B| / max(|A|,|B|). It is 0 when either side is empty.
func OverlapMax(a, b string) float64 {
	wa, wb := Words(a), Words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	return float64(intersection(wa, wb)) / float64(max(len(wa), len(wb)))
}

// OverlapMin is |A∩B| / min(|A|,|B|). It is 0 when either side is empty.
func OverlapMin(a, b string) float64 {
	wa, wb := Words(a), Words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	return float64(intersection(wa, wb)) / float64(min(len(wa), len(wb)))
}

// NearDuplicate reports whether two texts describe the same thing: one
// normalized form contains the other, or OverlapMax exceeds threshold.
func NearDuplicate(a, b string, threshold float64) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return na == nb
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}
	return OverlapMax(na, nb) > threshold
}
