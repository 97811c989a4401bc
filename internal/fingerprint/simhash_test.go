package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimHash64Deterministic(t *testing.T) {
	text := "int a ;\nint b ;\nreturn a + b ;"
	assert.Equal(t, SimHash64(text), SimHash64(text))
}

func TestSimHash64EmptyInputIsZero(t *testing.T) {
	assert.Equal(t, uint64(0), SimHash64(""))
}

func TestSimHash64SelfSimilarityIsOne(t *testing.T) {
	fp := SimHash64("int a ;\nint b ;\nreturn a + b ;")
	assert.Equal(t, 1.0, SimHashSimilarity(fp, fp))
}

func TestSimHash64DifferentInputsDiffer(t *testing.T) {
	a := SimHash64("int a ; int b ; return a + b ;")
	b := SimHash64("totally unrelated token stream with different words entirely")
	assert.NotEqual(t, a, b)
}

func TestShingleFewerThanThreeTokens(t *testing.T) {
	assert.Equal(t, []string{"one"}, Shingle("one"))
	assert.Equal(t, []string{"one", "two"}, Shingle("one two"))
	assert.Nil(t, Shingle(""))
}

func TestShingleOverlappingTrigrams(t *testing.T) {
	got := Shingle("a b c d")
	assert.Equal(t, []string{"a b c", "b c d"}, got)
}

func TestHammingDistanceSymmetric(t *testing.T) {
	assert.Equal(t, HammingDistance64(0xFF, 0x0F), HammingDistance64(0x0F, 0xFF))
	assert.Equal(t, 0, HammingDistance64(0xABCD, 0xABCD))
}
