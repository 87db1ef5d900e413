package catalog

import (
	"strings"

	"golang.org/x/text/cases"
)

var foldCaser = cases.Fold()

// NormalizeName canonicalizes a product name for matching: case-folded,
// whitespace-collapsed, trailing plural 's' stripped per word.
func NormalizeName(s string) string {
	s = foldCaser.String(strings.TrimSpace(s))
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, " ")
}

// NameSimilarity returns a [0,1] similarity between two product names based
// on edit distance over their normalized forms. 1.0 means identical after
// normalization.
func NameSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == nb {
		return 1.0
	}
	longest := max(len(na), len(nb))
	if longest == 0 {
		return 0
	}
	d := editDistance(na, nb)
	sim := 1.0 - float64(d)/float64(longest)
	if sim < 0 {
		return 0
	}
	return sim
}

// editDistance computes the Levenshtein distance between two strings using a
// two-row table.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
