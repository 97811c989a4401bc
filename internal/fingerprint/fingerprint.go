package fingerprint

import (
	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/normalize"
)

// FileFingerprint is the per-file fingerprint record.
type FileFingerprint struct {
	SimHash64 uint64  `json:"simhash64"`
	PatchID   *string `json:"patch_id,omitempty"`
}

// Fingerprint is the per-diff fingerprint record: an overall SimHash and
// patch-id over the whole diff, plus one FileFingerprint per file whose
// normalized content is non-empty.
type Fingerprint struct {
	SimHash64 uint64                     `json:"simhash64"`
	PatchID   *string                    `json:"patch_id,omitempty"`
	Files     map[string]FileFingerprint `json:"files"`
}

// Builder computes Fingerprints and FileFingerprints from raw unified diffs.
// It is a thin struct (not a package of free functions) so the patch-id
// runner can be swapped out in tests without a global.
type Builder struct {
	Config    *core.ProvenanceConfig
	PatchIDer PatchIDRunner
}

// NewBuilder returns a Builder using GitPatchID for patch-id computation.
func NewBuilder(config *core.ProvenanceConfig) *Builder {
	return &Builder{Config: config, PatchIDer: GitPatchID{}}
}

// NewBuilderWithoutGit returns a Builder using HighwayHashPatchID, for
// environments where the `git` binary isn't available at query time.
func NewBuilderWithoutGit(config *core.ProvenanceConfig) *Builder {
	return &Builder{Config: config, PatchIDer: HighwayHashPatchID{}}
}

// BuildFingerprint computes the overall fingerprint for a raw diff plus one
// FileFingerprint per file whose normalized content is non-empty.
func (b *Builder) BuildFingerprint(diffText string) Fingerprint {
	normalized := normalize.NormalizeDiff(diffText, b.Config, nil)
	fp := Fingerprint{
		SimHash64: SimHash64(normalized),
		PatchID:   b.patchID(diffText),
		Files:     b.BuildFileFingerprints(diffText),
	}
	return fp
}

// BuildFileFingerprints splits diffText by file and recurses C1+C2 per
// file, dropping any file whose normalized content is empty.
func (b *Builder) BuildFileFingerprints(diffText string) map[string]FileFingerprint {
	files := normalize.SplitDiffByFile(diffText)
	out := make(map[string]FileFingerprint, files.Len())
	for _, path := range files.Paths() {
		fileDiff, _ := files.Get(path)
		normalized := normalize.NormalizeDiff(fileDiff, b.Config, nil)
		if normalized == "" {
			continue
		}
		out[path] = FileFingerprint{
			SimHash64: SimHash64(normalized),
			PatchID:   b.patchID(fileDiff),
		}
	}
	return out
}

func (b *Builder) patchID(diffText string) *string {
	if b.PatchIDer == nil {
		return nil
	}
	id, ok := b.PatchIDer.ComputePatchID(diffText)
	if !ok {
		return nil
	}
	return &id
}
