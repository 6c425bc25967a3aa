package resolver

import (
	"strings"
	"unicode"
)

// Normalize lowercases, strips punctuation and collapses whitespace.
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Ratio returns a 0-100 similarity score between two strings based on
// Levenshtein edit distance over the combined length.
func Ratio(a, b string) int {
	if a == b {
		return 100
	}
	lensum := len(a) + len(b)
	if lensum == 0 {
		return 100
	}
	dist := levenshtein(a, b)
	score := (lensum - 2*dist) * 100 / lensum
	if score < 0 {
		return 0
	}
	return score
}

// levenshtein computes edit distance with a single rolling row.
func levenshtein(a, b string) int {
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// FuzzyMatch finds the best candidate for query by normalized Ratio.
// Returns ("", 0) when no candidate reaches the threshold.
func FuzzyMatch(query string, candidates []string, threshold int) (string, int) {
	if query == "" || len(candidates) == 0 {
		return "", 0
	}

	qn := Normalize(query)
	best, bestScore := "", 0
	for _, c := range candidates {
		score := Ratio(qn, Normalize(c))
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore < threshold {
		return "", 0
	}
	return best, bestScore
}
