package refresh

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/hostapi"
)

func TestShouldSkipPRMergeCommit(t *testing.T) {
	assert.True(t, ShouldSkipPR("Merge branch 'main' into feature/foo", 2))
}

func TestShouldSkipPRRelease(t *testing.T) {
	assert.True(t, ShouldSkipPR("Release 8.0.1", 3))
	assert.True(t, ShouldSkipPR("release/8.0", 1))
}

func TestShouldSkipPRBareBranchTitle(t *testing.T) {
	assert.True(t, ShouldSkipPR("unstable", 1))
	assert.True(t, ShouldSkipPR("Master", 1))
}

func TestShouldSkipPRTooManyChangedFiles(t *testing.T) {
	assert.True(t, ShouldSkipPR("Add a feature", 51))
	assert.False(t, ShouldSkipPR("Add a feature", 50))
}

func TestShouldSkipPRKeepsOrdinaryPR(t *testing.T) {
	assert.False(t, ShouldSkipPR("Fix a race in the replication loop", 3))
}

type fakeListHost struct {
	pages       map[string]map[int][]hostapi.PRSummary
	diffs       map[int]string
	failNumbers map[int]bool
}

func (f *fakeListHost) FetchPRInfo(context.Context, string, string, int) (hostapi.PRInfo, error) {
	return hostapi.PRInfo{}, nil
}

func (f *fakeListHost) FetchPRDiff(_ context.Context, _, _ string, number int) ([]byte, hostapi.PRInfo, error) {
	if f.failNumbers[number] {
		return nil, hostapi.PRInfo{}, core.WithKind(core.KindTransient, assertErr("boom"), "fetch failed")
	}
	diff, ok := f.diffs[number]
	if !ok {
		return nil, hostapi.PRInfo{}, core.WithKind(core.KindNotFound, assertErr("missing"), "not found")
	}
	return []byte(diff), hostapi.PRInfo{}, nil
}

func (f *fakeListHost) FetchCommitDiff(context.Context, string, string, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeListHost) ListPullRequests(_ context.Context, _, _, state string, page, _ int) ([]hostapi.PRSummary, error) {
	return f.pages[state][page], nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func simpleDiff(n int) string {
	return "diff --git a/src/file.c b/src/file.c\n--- a/src/file.c\n+++ b/src/file.c\n@@ -1 +1 @@\n+int novelChange" + strconv.Itoa(n) + " = compute();\n"
}

func TestRunFingerprintsNewOrdinaryPRs(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	now := time.Now().UTC()
	host := &fakeListHost{
		pages: map[string]map[int][]hostapi.PRSummary{
			"open": {
				1: {{Number: 10, State: "open", Title: "Fix a crash in replication", CreatedAt: now, UpdatedAt: now, ChangedFiles: 2}},
			},
			"closed": {
				1: {{Number: 9, State: "closed", Title: "release/8.0", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour), ChangedFiles: 1}},
			},
		},
		diffs: map[int]string{10: simpleDiff(10)},
	}

	dbPath := t.TempDir() + "/prs.json.gz"
	opts := Options{SourceOwner: "acme", SourceRepo: "widget", CutoffDate: now.Add(-48 * time.Hour), DBPath: dbPath}
	result, err := Run(context.Background(), opts, host, cfg, core.NopLogger{})
	require.NoError(t, err)

	_, kept := result.PRs["10"]
	assert.True(t, kept)
	_, skipped := result.PRs["9"]
	assert.False(t, skipped, "release PR must be skipped")
}

func TestRunSkipsAlreadyUpToDatePR(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	now := time.Now().UTC()
	d := db.New("acme/widget", db.KindPRs)
	d.UpsertPR("10", db.PRRecord{Number: 10, State: "open", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour), SimHash64: 123})
	dbPath := t.TempDir() + "/prs.json.gz"
	require.NoError(t, d.Save(dbPath))

	host := &fakeListHost{
		pages: map[string]map[int][]hostapi.PRSummary{
			"open":   {1: {{Number: 10, State: "open", Title: "Fix a crash", CreatedAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour), ChangedFiles: 2}}},
			"closed": {1: {}},
		},
		diffs: map[int]string{10: simpleDiff(99)},
	}

	opts := Options{SourceOwner: "acme", SourceRepo: "widget", CutoffDate: now.Add(-48 * time.Hour), DBPath: dbPath}
	result, err := Run(context.Background(), opts, host, cfg, core.NopLogger{})
	require.NoError(t, err)
	assert.Equal(t, uint64(123), result.PRs["10"].SimHash64, "unchanged PR should not be refetched")
}

func TestRunToleratesFetchFailureAndContinues(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	now := time.Now().UTC()
	host := &fakeListHost{
		pages: map[string]map[int][]hostapi.PRSummary{
			"open": {1: {
				{Number: 11, State: "open", Title: "Fix bug A", CreatedAt: now, UpdatedAt: now, ChangedFiles: 1},
				{Number: 12, State: "open", Title: "Fix bug B", CreatedAt: now, UpdatedAt: now, ChangedFiles: 1},
			}},
			"closed": {1: {}},
		},
		diffs:       map[int]string{12: simpleDiff(12)},
		failNumbers: map[int]bool{11: true},
	}

	dbPath := t.TempDir() + "/prs.json.gz"
	opts := Options{SourceOwner: "acme", SourceRepo: "widget", CutoffDate: now.Add(-time.Hour), DBPath: dbPath}
	result, err := Run(context.Background(), opts, host, cfg, core.NopLogger{})
	require.NoError(t, err)

	_, has11 := result.PRs["11"]
	assert.False(t, has11)
	_, has12 := result.PRs["12"]
	assert.True(t, has12)
}
