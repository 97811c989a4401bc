// Package fingerprint implements the per-diff and per-file fingerprint
// builder (C2): 64-bit SimHash over normalized trigram shingles, plus a
// stable patch identifier.
package fingerprint

import (
	"encoding/binary"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// shingleKey is the fixed key used to derive the keyed Blake2b digest for
// each shingle. It need not be secret - it only has to be stable across
// runs so the same shingle always hashes to the same 64 bits.
var shingleKey = []byte("verify-provenance-simhash-v1")

// Shingle splits normalized whitespace-separated text into overlapping
// 3-grams. Inputs with fewer than 3 tokens fall back to one shingle per
// token; an empty input yields no shingles.
func Shingle(normalizedText string) []string {
	tokens := strings.Fields(normalizedText)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) < 3 {
		out := make([]string, len(tokens))
		copy(out, tokens)
		return out
	}
	shingles := make([]string, 0, len(tokens)-2)
	for i := 0; i+3 <= len(tokens); i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+3], " "))
	}
	return shingles
}

// shingleDigest computes a 64-bit big-endian keyed Blake2b digest of a
// shingle, truncated to the first 8 bytes.
func shingleDigest(shingle string) uint64 {
	h, err := blake2b.New(8, shingleKey)
	if err != nil {
		// blake2b.New only errors on an oversized key or out-of-range size;
		// neither is possible with the fixed arguments above.
		panic(err)
	}
	h.Write([]byte(shingle))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum)
}

// SimHash64 computes the 64-bit locality-sensitive fingerprint of
// normalizedText: each shingle casts a +1/-1 vote per bit position into a
// 64-element accumulator, keyed by that shingle's digest; bit i of the
// result is 1 iff the accumulator at i is strictly positive. Empty input
// (no shingles) yields 0.
func SimHash64(normalizedText string) uint64 {
	shingles := Shingle(normalizedText)
	if len(shingles) == 0 {
		return 0
	}
	var acc [64]int
	for _, s := range shingles {
		digest := shingleDigest(s)
		for bit := 0; bit < 64; bit++ {
			if digest&(1<<uint(63-bit)) != 0 {
				acc[bit]++
			} else {
				acc[bit]--
			}
		}
	}
	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if acc[bit] > 0 {
			fp |= 1 << uint(63-bit)
		}
	}
	return fp
}

// HammingDistance64 counts differing bits between two 64-bit fingerprints.
func HammingDistance64(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		count++
		x &= x - 1
	}
	return count
}

// SimHashSimilarity converts a Hamming distance over 64 bits into a
// [0,1] similarity score: 1 - hamming/64.
func SimHashSimilarity(a, b uint64) float64 {
	return 1.0 - float64(HammingDistance64(a, b))/64.0
}
