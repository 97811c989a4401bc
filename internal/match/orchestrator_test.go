package match

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
	"github.com/valkey-io/verify-provenance/internal/hostapi"
)

type fakeHostAPI struct {
	prDiffs     map[int]string
	commitDiffs map[string]string
}

func (f *fakeHostAPI) FetchPRInfo(context.Context, string, string, int) (hostapi.PRInfo, error) {
	return hostapi.PRInfo{}, nil
}

func (f *fakeHostAPI) FetchPRDiff(_ context.Context, _, _ string, number int) ([]byte, hostapi.PRInfo, error) {
	diff, ok := f.prDiffs[number]
	if !ok {
		return nil, hostapi.PRInfo{}, core.WithKind(core.KindNotFound, assertErr("not found"), "pr not found")
	}
	return []byte(diff), hostapi.PRInfo{}, nil
}

func (f *fakeHostAPI) ListPullRequests(context.Context, string, string, string, int, int) ([]hostapi.PRSummary, error) {
	return nil, nil
}

func (f *fakeHostAPI) FetchCommitDiff(_ context.Context, _, _, sha string) ([]byte, error) {
	diff, ok := f.commitDiffs[sha]
	if !ok {
		return nil, core.WithKind(core.KindNotFound, assertErr("not found"), "commit not found")
	}
	return []byte(diff), nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func substantiveDiff(seed string) string {
	var b strings.Builder
	for i := 0; i < 6; i++ {
		path := "src/file" + string(rune('a'+i)) + ".c"
		b.WriteString("diff --git a/" + path + " b/" + path + "\n--- a/" + path + "\n+++ b/" + path + "\n@@ -1 +1 @@\n")
		b.WriteString("+int " + seed + "Value" + string(rune('a'+i)) + " = computeSomethingNovel();\n")
	}
	return b.String()
}

func TestCheckDiffRejectsTrivialInput(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	findings, err := CheckDiff(context.Background(), "+int x;\n", db.New("x", db.KindPRs), nil, cfg, nil, Options{Threshold: 0.8, MaxReport: 5}, core.NopLogger{})
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCheckDiffFindsSimHashOnlyMatchWithoutHost(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	diff := substantiveDiff("novel")
	builder := fingerprint.NewBuilder(cfg)
	fp := builder.BuildFingerprint(diff)

	prDB := db.New("acme/widget", db.KindPRs)
	prDB.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: fp.SimHash64, Files: fp.Files})

	findings, err := CheckDiff(context.Background(), diff, prDB, nil, cfg, nil, Options{Threshold: 0.8, MaxReport: 5}, core.NopLogger{})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "simhash", findings[0].Method)
	assert.Equal(t, "1", findings[0].Identifier)
}

func TestCheckDiffDeepValidatesWithHost(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	diff := substantiveDiff("novel")
	builder := fingerprint.NewBuilder(cfg)
	fp := builder.BuildFingerprint(diff)

	prDB := db.New("acme/widget", db.KindPRs)
	prDB.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: fp.SimHash64, Files: fp.Files})

	host := &fakeHostAPI{prDiffs: map[int]string{1: diff}}
	opts := Options{Threshold: 0.8, MaxReport: 5, SourceOwner: "acme", SourceRepo: "widget"}
	findings, err := CheckDiff(context.Background(), diff, prDB, nil, cfg, host, opts, core.NopLogger{})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "simhash+deep", findings[0].Method)
	assert.InDelta(t, 1.0, findings[0].Similarity, 1e-9)
}

func TestCheckDiffFallsBackToLayer1WhenFetchFails(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	diff := substantiveDiff("novel")
	builder := fingerprint.NewBuilder(cfg)
	fp := builder.BuildFingerprint(diff)

	prDB := db.New("acme/widget", db.KindPRs)
	prDB.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: fp.SimHash64, Files: fp.Files})

	host := &fakeHostAPI{}
	opts := Options{Threshold: 0.8, MaxReport: 5, SourceOwner: "acme", SourceRepo: "widget"}
	findings, err := CheckDiff(context.Background(), diff, prDB, nil, cfg, host, opts, core.NopLogger{})
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "simhash", findings[0].Method)
}

func TestEffectiveCutoffIgnoreDateDisablesFilter(t *testing.T) {
	opts := Options{IgnoreDate: true}
	assert.Nil(t, effectiveCutoff("Date: Mon, 02 Jan 2006 15:04:05 -0700\n", opts))
}

func TestEffectiveCutoffPrefersEarlierOfTwoDates(t *testing.T) {
	ts := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	opts := Options{QueryTimestamp: &ts}
	cutoff := effectiveCutoff("Date: Mon, 02 Jan 2006 15:04:05 -0700\n", opts)
	require.NotNil(t, cutoff)
	assert.True(t, cutoff.Before(ts))
}
