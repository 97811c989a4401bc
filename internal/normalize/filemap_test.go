package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const twoFileDiff = `diff --git a/src/a.c b/src/a.c
index 111..222 100644
--- a/src/a.c
+++ b/src/a.c
@@ -1 +1 @@
-old a
+new a
diff --git a/src/b.c b/src/b.c
index 333..444 100644
--- a/src/b.c
+++ b/src/b.c
@@ -1 +1 @@
-old b
+new b
`

func TestSplitDiffByFilePreservesOrderAndContent(t *testing.T) {
	m := SplitDiffByFile(twoFileDiff)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, []string{"src/a.c", "src/b.c"}, m.Paths())

	aDiff, ok := m.Get("src/a.c")
	assert.True(t, ok)
	assert.Contains(t, aDiff, "-old a")
	assert.Contains(t, aDiff, "+new a")
	assert.NotContains(t, aDiff, "old b")
}

func TestSplitDiffByFileIgnoresMailboxPrologue(t *testing.T) {
	withPrologue := "From abc123\nDate: Mon\nSubject: [PATCH] fix\nSigned-off-by: dev\n---\n" + twoFileDiff
	m := SplitDiffByFile(withPrologue)
	assert.Equal(t, 2, m.Len())
}

func TestFileDiffMapJoinedPreservesInsertionOrder(t *testing.T) {
	m := SplitDiffByFile(twoFileDiff)
	joined := m.Joined()
	aIdx := indexOf(joined, "src/a.c")
	bIdx := indexOf(joined, "src/b.c")
	assert.True(t, aIdx >= 0 && bIdx >= 0 && aIdx < bIdx)
}

func TestCountDiffLines(t *testing.T) {
	assert.Equal(t, 4, CountDiffLines(twoFileDiff))
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
