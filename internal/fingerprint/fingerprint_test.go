package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/verify-provenance/internal/core"
)

type fakePatchIDer struct {
	id string
	ok bool
}

func (f fakePatchIDer) ComputePatchID(string) (string, bool) { return f.id, f.ok }

func testFPConfig() *core.ProvenanceConfig {
	return &core.ProvenanceConfig{
		BrandingPairs: []core.BrandPair{{Source: "Redis", Target: "Valkey"}},
	}
}

const twoFileDiff = `diff --git a/src/a.c b/src/a.c
--- a/src/a.c
+++ b/src/a.c
@@ -1,2 +1,2 @@
-int redisCount = 1;
+int valkeyCount = 2;
diff --git a/src/b.c b/src/b.c
--- a/src/b.c
+++ b/src/b.c
@@ -1 +1 @@
-int same = 1;
+int same = 1;
`

func TestBuildFingerprintIncludesFileFingerprints(t *testing.T) {
	b := &Builder{Config: testFPConfig(), PatchIDer: fakePatchIDer{id: "abc123", ok: true}}
	fp := b.BuildFingerprint(twoFileDiff)
	require.Contains(t, fp.Files, "src/a.c")
	require.NotNil(t, fp.PatchID)
	assert.Equal(t, "abc123", *fp.PatchID)
}

func TestBuildFileFingerprintsDropsNormalizeEmptyFile(t *testing.T) {
	diff := `diff --git a/src/unchanged.c b/src/unchanged.c
--- a/src/unchanged.c
+++ b/src/unchanged.c
@@ -1 +1 @@
 unchanged context only
`
	b := &Builder{Config: testFPConfig(), PatchIDer: fakePatchIDer{ok: false}}
	files := b.BuildFileFingerprints(diff)
	assert.NotContains(t, files, "src/unchanged.c")
}

func TestBuildFingerprintMissingPatchIDIsNil(t *testing.T) {
	b := &Builder{Config: testFPConfig(), PatchIDer: fakePatchIDer{ok: false}}
	fp := b.BuildFingerprint(twoFileDiff)
	assert.Nil(t, fp.PatchID)
}

func TestBuildFingerprintDeterministic(t *testing.T) {
	b := &Builder{Config: testFPConfig(), PatchIDer: fakePatchIDer{ok: false}}
	a := b.BuildFingerprint(twoFileDiff)
	c := b.BuildFingerprint(twoFileDiff)
	assert.Equal(t, a.SimHash64, c.SimHash64)
}
