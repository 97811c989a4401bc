package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepCompareIdenticalStreamsAreSimilarityOne(t *testing.T) {
	res := DeepCompare("int a ; return a ;", "int a ; return a ;")
	assert.Equal(t, 1.0, res.Jaccard)
	assert.Equal(t, 1.0, res.Sequence)
	assert.Equal(t, 1.0, res.Similarity)
}

func TestDeepCompareEmptyInputIsZero(t *testing.T) {
	res := DeepCompare("", "int a ;")
	assert.Equal(t, DeepCompareResult{}, res)
}

func TestDeepCompareSubsetDetectsCherryPick(t *testing.T) {
	a := "NUM NUM NUM"
	b := "NUM NUM NUM STR STR STR extra tokens padding the larger change"
	res := DeepCompare(a, b)
	assert.Equal(t, 1.0, res.Subset)
	assert.Greater(t, res.Similarity, res.Jaccard)
}

func TestDeepCompareSequenceIsIndexAlignedNotLCS(t *testing.T) {
	// A reversal of the same multiset: LCS-based alignment would still
	// find a long common subsequence, but index-zip sequence similarity
	// must not, since no position lines up except possibly the middle.
	a := "one two three four five"
	b := "five four three two one"
	res := DeepCompare(a, b)
	assert.Less(t, res.Sequence, 0.5)
	assert.Equal(t, 1.0, res.Jaccard)
}

func TestDeepCompareWeightedCombination(t *testing.T) {
	res := DeepCompare("a b c", "a b d")
	expected := 0.6*res.Jaccard + 0.4*res.Sequence
	if res.Subset > expected {
		expected = res.Subset
	}
	assert.InDelta(t, expected, res.Similarity, 1e-9)
}
