package fingerprint

import (
	"encoding/hex"
	"strings"

	"github.com/minio/highwayhash"
)

// highwayHashKey is a fixed 32-byte key, the same role hercules's UAST
// cache keys its node hashes with in changes_xpather.go: it need not be
// secret, only stable across runs and processes.
var highwayHashKey = []byte{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31,
}

// HighwayHashPatchID computes a patch-id without shelling out to git: it
// hashes the concatenation of every added/removed line's content (not its
// hunk header or line numbers) with HighwayHash, giving the same
// equivalence property §4.2 requires of any patch-id implementation -
// equal patch-id iff identical added/removed content in the same order,
// independent of hunk offsets. Use this where the `git` binary is
// unavailable at query time; GitPatchID remains the default.
type HighwayHashPatchID struct{}

// ComputePatchID implements PatchIDRunner.
func (HighwayHashPatchID) ComputePatchID(diff string) (string, bool) {
	var content strings.Builder
	any := false
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++"):
			content.WriteByte('+')
			content.WriteString(line[1:])
			content.WriteByte('\n')
			any = true
		case strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---"):
			content.WriteByte('-')
			content.WriteString(line[1:])
			content.WriteByte('\n')
			any = true
		}
	}
	if !any {
		return "", false
	}
	sum := highwayhash.Sum128([]byte(content.String()), highwayHashKey)
	return hex.EncodeToString(sum[:]), true
}
