package thought

import (
	"strings"
	"unicode"
)

// tokenSet lowercases content and splits it into a set of word tokens.
// Punctuation separates tokens; hyphens and underscores inside identifiers
// are kept so "best_of_n" and "re-rank" stay single tokens.
func tokenSet(content string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		if r == '_' || r == '-' {
			return false
		}
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// jaccard computes |A∩B| / |A∪B| for two token sets. Two empty sets are
// treated as identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	overlap := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			overlap++
		}
	}
	union := len(a) + len(b) - overlap
	return float64(overlap) / float64(union)
}

// agreementScore returns the arithmetic mean of the pairwise Jaccard
// similarities over all unordered pairs of responses. Fewer than two
// responses agree trivially.
func agreementScore(responses []ModelResponse) float64 {
	if len(responses) < 2 {
		return 1.0
	}
	sets := make([]map[string]struct{}, len(responses))
	for i, r := range responses {
		sets[i] = tokenSet(r.Content)
	}
	var sum float64
	pairs := 0
	for i := 0; i < len(sets); i++ {
		for j := i + 1; j < len(sets); j++ {
			sum += jaccard(sets[i], sets[j])
			pairs++
		}
	}
	return sum / float64(pairs)
}

// pairwiseMeans returns, for each response, the mean Jaccard similarity
// against every other response. Used by majority scoring and the
// divergence view.
func pairwiseMeans(responses []ModelResponse) []float64 {
	n := len(responses)
	means := make([]float64, n)
	if n < 2 {
		for i := range means {
			means[i] = 1.0
		}
		return means
	}
	sets := make([]map[string]struct{}, n)
	for i, r := range responses {
		sets[i] = tokenSet(r.Content)
	}
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			sum += jaccard(sets[i], sets[j])
		}
		means[i] = sum / float64(n-1)
	}
	return means
}

// LeastSimilarPair returns the indices of the two valid responses with the
// lowest pairwise similarity, for divergence inspection. ok is false when
// fewer than two responses are usable.
func LeastSimilarPair(responses []ModelResponse) (i, j int, sim float64, ok bool) {
	var valid []int
	for idx, r := range responses {
		if r.OK() {
			valid = append(valid, idx)
		}
	}
	if len(valid) < 2 {
		return 0, 0, 0, false
	}
	sets := make(map[int]map[string]struct{}, len(valid))
	for _, idx := range valid {
		sets[idx] = tokenSet(responses[idx].Content)
	}
	lowest := 2.0
	for a := 0; a < len(valid); a++ {
		for b := a + 1; b < len(valid); b++ {
			s := jaccard(sets[valid[a]], sets[valid[b]])
			if s < lowest {
				lowest = s
				i, j = valid[a], valid[b]
			}
		}
	}
	return i, j, lowest, true
}
