package match

import (
	"context"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
	"github.com/valkey-io/verify-provenance/internal/hostapi"
	"github.com/valkey-io/verify-provenance/internal/normalize"
	"github.com/valkey-io/verify-provenance/internal/triviality"
)

// DefaultLayer2Threshold is §6's default LAYER2_SIMILARITY_THRESHOLD,
// overridable per run via Options.Threshold.
const DefaultLayer2Threshold = 0.85

// Finding is an accepted match against one PR or commit record.
type Finding struct {
	Kind       db.Kind
	Identifier string
	Similarity float64
	Method     string
}

// Options configures a CheckDiff run.
type Options struct {
	Threshold      float64
	MaxReport      int
	QueryTimestamp *time.Time
	IgnoreDate     bool
	PoolSize       int
	SourceOwner    string
	SourceRepo     string

	// PatchIDer overrides the fingerprint builder's patch-id computation
	// (GitPatchID by default); set to fingerprint.HighwayHashPatchID{} to
	// avoid shelling out to the `git` binary at query time.
	PatchIDer fingerprint.PatchIDRunner
}

// extractEarliestDate scans diffText for RFC 2822 "Date: " mailbox-prologue
// headers and returns the earliest one found, normalized to UTC.
func extractEarliestDate(diffText string) (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, line := range normalize.SplitLines(diffText) {
		const prefix = "Date: "
		if len(line) <= len(prefix) || line[:len(prefix)] != prefix {
			continue
		}
		t, err := mail.ParseDate(line[len(prefix):])
		if err != nil {
			continue
		}
		t = t.UTC()
		if !found || t.Before(earliest) {
			earliest = t
			found = true
		}
	}
	return earliest, found
}

func effectiveCutoff(diffText string, opts Options) *time.Time {
	if opts.IgnoreDate {
		return nil
	}
	earliest, hasEarliest := extractEarliestDate(diffText)
	switch {
	case hasEarliest && opts.QueryTimestamp != nil:
		if opts.QueryTimestamp.UTC().Before(earliest) {
			t := opts.QueryTimestamp.UTC()
			return &t
		}
		return &earliest
	case hasEarliest:
		return &earliest
	case opts.QueryTimestamp != nil:
		t := opts.QueryTimestamp.UTC()
		return &t
	default:
		return nil
	}
}

// CheckDiff drives the whole C1→C6 pipeline for a single query diff
// against the PR and commit databases, returning findings in the order
// PRs-first then commits-first, each group by Layer-1 similarity
// descending (§5's ordering guarantee). Deep validation (C5) does not
// reorder; it only accepts or rejects a Layer-1-ranked candidate.
func CheckDiff(ctx context.Context, diffText string, prDB, commitDB *db.DB, config *core.ProvenanceConfig, host hostapi.HostAPI, opts Options, logger core.Logger) ([]Finding, error) {
	filtered := normalize.FilterBrandingChanges(diffText, config)

	cutoff := effectiveCutoff(filtered, opts)

	normalized := normalize.NormalizeDiff(filtered, config, nil)
	if len(strings.Fields(strings.ReplaceAll(normalized, "\n", " "))) < triviality.MinTokens {
		return nil, nil
	}
	if normalize.CountDiffLines(filtered) < triviality.MinLines {
		return nil, nil
	}
	if triviality.DetectCodeMovement(filtered).Trivial {
		return nil, nil
	}

	builder := fingerprint.NewBuilder(config)
	if opts.PatchIDer != nil {
		builder.PatchIDer = opts.PatchIDer
	}
	query := builder.BuildFingerprint(filtered)
	queryFiles := normalize.SplitDiffByFile(filtered)

	var findings []Finding
	if prDB != nil {
		findings = append(findings, matchAgainstDB(ctx, query, queryFiles, prDB, db.KindPRs, cutoff, config, host, opts, logger)...)
	}
	if commitDB != nil {
		findings = append(findings, matchAgainstDB(ctx, query, queryFiles, commitDB, db.KindCommits, cutoff, config, host, opts, logger)...)
	}
	return findings, nil
}

func matchAgainstDB(ctx context.Context, query fingerprint.Fingerprint, queryFiles *normalize.FileDiffMap, d *db.DB, kind db.Kind, cutoff *time.Time, config *core.ProvenanceConfig, host hostapi.HostAPI, opts Options, logger core.Logger) []Finding {
	candidates := FindCandidates(query, d, kind, cutoff, config, opts.PoolSize)
	if len(candidates) == 0 {
		return nil
	}

	fanoutCount := core.Min(2*opts.MaxReport, len(candidates))
	toValidate := candidates[:fanoutCount]

	deepSims := deepValidate(ctx, toValidate, kind, queryFiles, config, host, opts, logger)

	var findings []Finding
	for i, c := range toValidate {
		deepSim, hasDeep := deepSims[i]
		var accept bool
		var method string
		var sim float64
		switch {
		case hasDeep:
			accept = deepSim >= opts.Threshold
			method = "simhash+deep"
			sim = deepSim
		default:
			accept = c.Sim >= opts.Threshold
			method = "simhash"
			sim = c.Sim
		}
		if !accept {
			continue
		}
		findings = append(findings, Finding{Kind: kind, Identifier: c.Key, Similarity: sim, Method: method})
		if len(findings) >= opts.MaxReport {
			break
		}
	}
	return findings
}

// deepValidate fetches the source-side diff for each candidate and runs
// C5, fanning the fetch+compare out across a bounded worker pool. A
// candidate whose fetch fails (exhausted retries, 404) keeps no deep score
// and falls back to its Layer-1 similarity, per §4.5/§7. When the query
// has no per-file diffs, or no host is configured, no candidate gets a
// deep score.
func deepValidate(ctx context.Context, candidates []Candidate, kind db.Kind, queryFiles *normalize.FileDiffMap, config *core.ProvenanceConfig, host hostapi.HostAPI, opts Options, logger core.Logger) map[int]float64 {
	if queryFiles.Len() == 0 || host == nil {
		return nil
	}
	queryJoined := normalize.NormalizeDiff(queryFiles.Joined(), config, nil)

	type job struct {
		idx int
		c   Candidate
	}
	compare := func(j job) (int, float64, bool) {
		sourceDiff, err := fetchCandidateDiff(ctx, host, kind, j.c.Key, opts)
		if err != nil {
			logger.Debugf("deep validation fetch failed for %s: %v", j.c.Key, err)
			return j.idx, 0, false
		}
		normalizedSource := normalize.NormalizeDiff(sourceDiff, config, nil)
		result := DeepCompare(queryJoined, normalizedSource)
		return j.idx, result.Similarity, true
	}

	results := make(map[int]float64, len(candidates))
	if opts.PoolSize <= 1 || len(candidates) < opts.PoolSize {
		for i, c := range candidates {
			if idx, sim, ok := compare(job{idx: i, c: c}); ok {
				results[idx] = sim
			}
		}
		return results
	}

	type outcome struct {
		idx int
		sim float64
		ok  bool
	}
	pool := tunny.NewFunc(opts.PoolSize, func(payload interface{}) interface{} {
		j := payload.(job)
		idx, sim, ok := compare(j)
		return outcome{idx: idx, sim: sim, ok: ok}
	})
	defer pool.Close()
	for i, c := range candidates {
		out := pool.Process(job{idx: i, c: c}).(outcome)
		if out.ok {
			results[out.idx] = out.sim
		}
	}
	return results
}

func fetchCandidateDiff(ctx context.Context, host hostapi.HostAPI, kind db.Kind, key string, opts Options) (string, error) {
	switch kind {
	case db.KindPRs:
		number, err := strconv.Atoi(key)
		if err != nil {
			return "", err
		}
		diff, _, err := host.FetchPRDiff(ctx, opts.SourceOwner, opts.SourceRepo, number)
		if err != nil {
			return "", err
		}
		return string(diff), nil
	case db.KindCommits:
		diff, err := host.FetchCommitDiff(ctx, opts.SourceOwner, opts.SourceRepo, key)
		if err != nil {
			return "", err
		}
		return string(diff), nil
	default:
		return "", nil
	}
}
