package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
)

func strPtr(s string) *string { return &s }

func TestFindCandidatesAdmitsHighSimilarity(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	d := db.New("acme/widget", db.KindPRs)
	d.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: 0x00FF})
	query := fingerprint.Fingerprint{SimHash64: 0x00FF}

	candidates := FindCandidates(query, d, db.KindPRs, nil, cfg, 1)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1.0, candidates[0].Sim)
}

func TestFindCandidatesRejectsLowSimilarity(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	d := db.New("acme/widget", db.KindPRs)
	d.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: 0xFFFFFFFFFFFFFFFF})
	query := fingerprint.Fingerprint{SimHash64: 0x0}

	candidates := FindCandidates(query, d, db.KindPRs, nil, cfg, 1)
	assert.Empty(t, candidates)
}

func TestFindCandidatesPatchIDBoostsLowerSimilarity(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	d := db.New("acme/widget", db.KindPRs)
	// 16 of 64 bits differ: sim = 1 - 16/64 = 0.75, between the
	// patch-id-corroborated floor (0.70) and the base floor (0.80).
	query := fingerprint.Fingerprint{SimHash64: 0, PatchID: strPtr("match")}
	d.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: 0xFFFF, PatchID: strPtr("match")})

	candidates := FindCandidates(query, d, db.KindPRs, nil, cfg, 1)
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].PatchIDMatch)
}

func TestFindCandidatesDateCutoffExcludesNewerRecords(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	d := db.New("acme/widget", db.KindPRs)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	d.UpsertPR("old", db.PRRecord{Number: 1, CreatedAt: cutoff.Add(-time.Hour), SimHash64: 0})
	d.UpsertPR("new", db.PRRecord{Number: 2, CreatedAt: cutoff.Add(time.Hour), SimHash64: 0})
	query := fingerprint.Fingerprint{SimHash64: 0}

	candidates := FindCandidates(query, d, db.KindPRs, &cutoff, cfg, 1)
	require.Len(t, candidates, 1)
	assert.Equal(t, "old", candidates[0].Key)
}

func TestFindCandidatesInfrastructureGateSkipsAllFiles(t *testing.T) {
	cfg := &core.ProvenanceConfig{InfrastructurePatterns: []string{"vendor/"}}
	d := db.New("acme/widget", db.KindPRs)
	d.UpsertPR("1", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: 0})
	query := fingerprint.Fingerprint{
		SimHash64: 0,
		Files:     map[string]fingerprint.FileFingerprint{"vendor/lib.c": {SimHash64: 0}},
	}

	candidates := FindCandidates(query, d, db.KindPRs, nil, cfg, 1)
	assert.Empty(t, candidates)
}

func TestFindCandidatesStableSortTiesByInsertionOrder(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	d := db.New("acme/widget", db.KindPRs)
	d.UpsertPR("first", db.PRRecord{Number: 1, CreatedAt: time.Now(), SimHash64: 0})
	d.UpsertPR("second", db.PRRecord{Number: 2, CreatedAt: time.Now(), SimHash64: 0})
	query := fingerprint.Fingerprint{SimHash64: 0}

	candidates := FindCandidates(query, d, db.KindPRs, nil, cfg, 1)
	require.Len(t, candidates, 2)
	assert.Equal(t, "first", candidates[0].Key)
	assert.Equal(t, "second", candidates[1].Key)
}

func TestFindCandidatesParallelPoolMatchesSerialResult(t *testing.T) {
	cfg := &core.ProvenanceConfig{}
	serial := db.New("acme/widget", db.KindPRs)
	parallel := db.New("acme/widget", db.KindPRs)
	for i := 0; i < 8; i++ {
		key := string(rune('a' + i))
		rec := db.PRRecord{Number: i, CreatedAt: time.Now(), SimHash64: uint64(i)}
		serial.UpsertPR(key, rec)
		parallel.UpsertPR(key, rec)
	}
	query := fingerprint.Fingerprint{SimHash64: 0}

	serialResult := FindCandidates(query, serial, db.KindPRs, nil, cfg, 1)
	parallelResult := FindCandidates(query, parallel, db.KindPRs, nil, cfg, 4)
	require.Equal(t, len(serialResult), len(parallelResult))
	for i := range serialResult {
		assert.Equal(t, serialResult[i].Key, parallelResult[i].Key)
	}
}
