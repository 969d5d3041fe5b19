// Package lexical holds the surface-text measures reported next to the semantic score when a
// document is checked against a folder: word overlap, exact occurrences, edit distance and
// word shingles. Percentages are rounded to two decimals.
package lexical

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/formbricks/similarity/pkg/embeddings"
)

// DefaultShingleSize is the number of consecutive words per shingle.
const DefaultShingleSize = 3

const percentPrecision = 2

// Report is every lexical measure of one document pair.
type Report struct {
	Jaccard      float64
	ExactMatches int
	Levenshtein  int
	Shingles     float64
}

// Compare computes a Report for target against text.
func Compare(target, text string) Report {
	return Report{
		Jaccard:      Jaccard(target, text),
		ExactMatches: ExactMatches(target, text),
		Levenshtein:  Levenshtein(target, text),
		Shingles:     ShingleSimilarity(target, text, DefaultShingleSize),
	}
}

// Jaccard is the percentage of distinct lower-cased words the texts share.
func Jaccard(a, b string) float64 {
	return setSimilarity(wordSet(a), wordSet(b))
}

// ShingleSimilarity is the Jaccard percentage over k-word shingles. Texts shorter than k words
// have no shingles.
func ShingleSimilarity(a, b string, k int) float64 {
	return setSimilarity(Shingles(a, k), Shingles(b, k))
}

// Shingles returns the distinct runs of k consecutive lower-cased words in text.
func Shingles(text string, k int) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{})

	if k <= 0 {
		return out
	}

	for i := 0; i+k <= len(words); i++ {
		out[strings.Join(words[i:i+k], " ")] = struct{}{}
	}

	return out
}

// Levenshtein is the number of single-character edits turning a into b.
func Levenshtein(a, b string) int {
	return levenshtein.Distance(a, b, nil)
}

// ExactMatches counts occurrences of pattern in text, overlapping ones included, using
// Knuth-Morris-Pratt over runes. An empty pattern matches nothing.
func ExactMatches(pattern, text string) int {
	p := []rune(pattern)
	if len(p) == 0 {
		return 0
	}

	lps := prefixTable(p)
	count, j := 0, 0

	for _, r := range text {
		for j > 0 && r != p[j] {
			j = lps[j-1]
		}

		if r == p[j] {
			j++
		}

		if j == len(p) {
			count++
			j = lps[j-1]
		}
	}

	return count
}

// prefixTable holds, for each prefix of p, the length of its longest proper prefix that is also
// a suffix.
func prefixTable(p []rune) []int {
	lps := make([]int, len(p))

	for i, n := 1, 0; i < len(p); {
		switch {
		case p[i] == p[n]:
			n++
			lps[i] = n
			i++
		case n > 0:
			n = lps[n-1]
		default:
			i++
		}
	}

	return lps
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	out := make(map[string]struct{}, len(words))

	for _, w := range words {
		out[w] = struct{}{}
	}

	return out
}

// setSimilarity is |a ∩ b| / |a ∪ b| as a percentage; two empty sets score 0.
func setSimilarity(a, b map[string]struct{}) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}

	shared := 0

	for k := range a {
		if _, ok := b[k]; ok {
			shared++
		}
	}

	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}

	return embeddings.RoundTo(float64(shared)/float64(union)*100, percentPrecision)
}
