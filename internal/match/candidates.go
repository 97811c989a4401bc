// Package match implements Layer-1 candidate search (C4), the Layer-2 deep
// comparator (C5), and the matching orchestrator (C6) that drives C1→C6
// end to end against a fingerprint database.
package match

import (
	"sort"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
)

const (
	// Layer1SimHashBaseThreshold is the per-comparison similarity floor
	// that alone admits a record as a candidate.
	Layer1SimHashBaseThreshold = 0.80
	// Layer1SimHashWithPatchID is the lower similarity floor that still
	// admits a record when corroborated by a matching patch-id.
	Layer1SimHashWithPatchID = 0.70
)

// MatchedFile is a per-file candidate match: the shared path, the
// per-file similarity, and whether the per-file patch-id matched too.
type MatchedFile struct {
	Path         string
	Sim          float64
	PatchIDMatch bool
}

// Candidate is a Layer-1 admitted record, ranked by Sim descending.
type Candidate struct {
	Key          string
	Sim          float64
	PatchIDMatch bool
	MatchedFiles []MatchedFile
	insertionIdx int
}

// recordView is the subset of a PR/commit record that Layer-1 compares
// against, independent of which concrete record type it came from.
type recordView struct {
	key          string
	timestamp    time.Time
	simhash64    uint64
	patchID      *string
	files        map[string]fingerprint.FileFingerprint
	insertionIdx int
}

func patchIDEqual(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func compareOne(query fingerprint.Fingerprint, r recordView) (Candidate, bool) {
	overallSim := fingerprint.SimHashSimilarity(query.SimHash64, r.simhash64)
	overallPID := patchIDEqual(query.PatchID, r.patchID)

	bestSim := overallSim
	anyPID := overallPID
	var matchedFiles []MatchedFile

	if r.files != nil {
		for path, qf := range query.Files {
			rf, ok := r.files[path]
			if !ok {
				continue
			}
			sim := fingerprint.SimHashSimilarity(qf.SimHash64, rf.SimHash64)
			pidMatch := patchIDEqual(qf.PatchID, rf.PatchID)
			if sim >= Layer1SimHashBaseThreshold || (sim >= Layer1SimHashWithPatchID && pidMatch) {
				matchedFiles = append(matchedFiles, MatchedFile{Path: path, Sim: sim, PatchIDMatch: pidMatch})
			}
			if sim > bestSim {
				bestSim = sim
			}
			if pidMatch {
				anyPID = true
			}
		}
	}

	admitted := bestSim >= Layer1SimHashBaseThreshold ||
		(bestSim >= Layer1SimHashWithPatchID && anyPID) ||
		len(matchedFiles) > 0
	if !admitted {
		return Candidate{}, false
	}

	return Candidate{
		Key:          r.key,
		Sim:          bestSim,
		PatchIDMatch: anyPID,
		MatchedFiles: matchedFiles,
		insertionIdx: r.insertionIdx,
	}, true
}

// isAllInfrastructure reports whether every file path in files matches an
// infrastructure pattern - the Layer-1 gate that skips a search entirely
// for vendored/build-only diffs. An empty file set is not infrastructure:
// such a query is still compared on its overall SimHash.
func isAllInfrastructure(files map[string]fingerprint.FileFingerprint, config *core.ProvenanceConfig) bool {
	if len(files) == 0 {
		return false
	}
	for path := range files {
		if !config.IsInfrastructureFile(path) {
			return false
		}
	}
	return true
}

func recordViewsFromPRDB(d *db.DB, cutoff *time.Time) []recordView {
	order := d.InsertionOrder()
	views := make([]recordView, 0, len(order))
	for idx, key := range order {
		rec, ok := d.PRs[key]
		if !ok {
			continue
		}
		if cutoff != nil && rec.CreatedAt.UTC().After(*cutoff) {
			continue
		}
		views = append(views, recordView{
			key: key, timestamp: rec.CreatedAt, simhash64: rec.SimHash64,
			patchID: rec.PatchID, files: rec.Files, insertionIdx: idx,
		})
	}
	return views
}

func recordViewsFromCommitDB(d *db.DB, cutoff *time.Time) []recordView {
	order := d.InsertionOrder()
	views := make([]recordView, 0, len(order))
	for idx, key := range order {
		rec, ok := d.Commits[key]
		if !ok {
			continue
		}
		if cutoff != nil && rec.Date.UTC().After(*cutoff) {
			continue
		}
		views = append(views, recordView{
			key: key, timestamp: rec.Date, simhash64: rec.SimHash64,
			patchID: rec.PatchID, files: rec.Files, insertionIdx: idx,
		})
	}
	return views
}

// FindCandidates runs Layer-1 search (C4): the infrastructure gate, then a
// per-record scan against d, fanned out across a bounded worker pool when
// there is enough work to justify one, followed by a stable sort (by
// similarity descending, ties by insertion order) gathered after the scan
// completes - per §5, "If parallelized, Layer-1 ranking must be stable
// (sort after gather)."
func FindCandidates(query fingerprint.Fingerprint, d *db.DB, kind db.Kind, cutoff *time.Time, config *core.ProvenanceConfig, poolSize int) []Candidate {
	if isAllInfrastructure(query.Files, config) {
		return nil
	}

	var views []recordView
	switch kind {
	case db.KindPRs:
		views = recordViewsFromPRDB(d, cutoff)
	case db.KindCommits:
		views = recordViewsFromCommitDB(d, cutoff)
	}
	if len(views) == 0 {
		return nil
	}

	results := make([]*Candidate, len(views))
	if poolSize <= 1 || len(views) < poolSize {
		for i, v := range views {
			if c, ok := compareOne(query, v); ok {
				results[i] = &c
			}
		}
	} else {
		pool := tunny.NewFunc(poolSize, func(payload interface{}) interface{} {
			v := payload.(recordView)
			if c, ok := compareOne(query, v); ok {
				return &c
			}
			return (*Candidate)(nil)
		})
		defer pool.Close()
		for i, v := range views {
			out := pool.Process(v)
			results[i], _ = out.(*Candidate)
		}
	}

	candidates := make([]Candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Sim != candidates[j].Sim {
			return candidates[i].Sim > candidates[j].Sim
		}
		return candidates[i].insertionIdx < candidates[j].insertionIdx
	})
	return candidates
}
