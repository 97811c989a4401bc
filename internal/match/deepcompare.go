package match

import (
	"strings"

	"github.com/valkey-io/verify-provenance/internal/core"
)

// DeepCompareResult holds the three Layer-2 similarity components and
// their combination.
type DeepCompareResult struct {
	Jaccard    float64
	Sequence   float64
	Subset     float64
	Similarity float64
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// DeepCompare computes the Layer-2 deep-comparison scores (§4.5) between
// two already-normalized token streams, newline-joined as NormalizeDiff
// produces them: Jaccard set overlap, an index-aligned (non-LCS)
// sequence-match ratio, and an asymmetric subset-containment score
// measuring whether A is contained in B. Either stream being empty yields
// an all-zero result.
func DeepCompare(normalizedA, normalizedB string) DeepCompareResult {
	a := strings.Fields(strings.ReplaceAll(normalizedA, "\n", " "))
	b := strings.Fields(strings.ReplaceAll(normalizedB, "\n", " "))
	if len(a) == 0 || len(b) == 0 {
		return DeepCompareResult{}
	}

	setA, setB := tokenSet(a), tokenSet(b)
	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	var jaccard float64
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	var subset float64
	if len(setA) > 0 {
		subset = float64(intersection) / float64(len(setA))
	}

	maxLen := core.Max(len(a), len(b))
	matched := 0
	minLen := core.Min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		if a[i] == b[i] {
			matched++
		}
	}
	var sequence float64
	if maxLen > 0 {
		sequence = float64(matched) / float64(maxLen)
	}

	weighted := 0.6*jaccard + 0.4*sequence
	similarity := weighted
	if subset > similarity {
		similarity = subset
	}

	return DeepCompareResult{Jaccard: jaccard, Sequence: sequence, Subset: subset, Similarity: similarity}
}
