// Package db implements the on-disk fingerprint database (C7): a gzipped
// JSON keyed store of PR or commit records, with incremental refresh
// checkpointing.
package db

import (
	"compress/gzip"
	"encoding/json"
	"io/ioutil"
	"os"
	"time"

	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
)

// PRRecord is the fingerprint record for a single pull request.
type PRRecord struct {
	Number    int                                   `json:"number"`
	State     string                                `json:"state"`
	CreatedAt time.Time                              `json:"created_at"`
	UpdatedAt time.Time                              `json:"updated_at"`
	SimHash64 uint64                                `json:"simhash64"`
	PatchID   *string                               `json:"patch_id,omitempty"`
	Files     map[string]fingerprint.FileFingerprint `json:"files"`
}

// CommitRecord is the fingerprint record for a single commit.
type CommitRecord struct {
	SHA       string                                 `json:"sha"`
	Date      time.Time                              `json:"date"`
	SimHash64 uint64                                 `json:"simhash64"`
	PatchID   *string                                `json:"patch_id,omitempty"`
	Files     map[string]fingerprint.FileFingerprint `json:"files,omitempty"`
}

// Kind distinguishes which of the mutually-exclusive PRs/Commits payloads a
// DB holds.
type Kind string

const (
	KindPRs     Kind = "prs"
	KindCommits Kind = "commits"
)

// DB is the in-memory, read-only-during-a-query representation of a
// fingerprint database file: exactly one of PRs or Commits is populated,
// matching Kind.
type DB struct {
	Repo        string
	GeneratedAt time.Time
	Kind        Kind
	PRs         map[string]PRRecord
	Commits     map[string]CommitRecord

	// insertionOrder preserves load/insert order for tie-breaking during
	// Layer-1 ranking (§4.4: "ties broken by insertion order").
	insertionOrder []string

	dirty           int
	checkpointEvery int
}

// onDiskShape mirrors §6's "Fingerprint DB on disk" JSON layout: exactly
// one of PRs or Commits is present.
type onDiskShape struct {
	Repo        string                  `json:"repo"`
	GeneratedAt time.Time               `json:"generated_at"`
	PRs         map[string]PRRecord     `json:"prs,omitempty"`
	Commits     map[string]CommitRecord `json:"commits,omitempty"`
}

// New returns an empty DB of the given kind for repo.
func New(repo string, kind Kind) *DB {
	d := &DB{Repo: repo, Kind: kind, checkpointEvery: 10}
	switch kind {
	case KindPRs:
		d.PRs = map[string]PRRecord{}
	case KindCommits:
		d.Commits = map[string]CommitRecord{}
	}
	return d
}

// Load reads a gzipped JSON fingerprint DB from path. A missing file or a
// parse failure both degrade to an empty DB of the requested kind - per
// §6, "Missing file → empty DB; parse error → empty DB (log and continue)"
// - and neither is returned as an error, since neither is fatal to a query.
// Read and parse failures are logged as warnings; a missing file is not.
func Load(path string, kind Kind, logger core.Logger) *DB {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("fingerprint db %s: %v, starting empty", path, err)
		}
		return New("", kind)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		logger.Warnf("fingerprint db %s: not gzip: %v, starting empty", path, err)
		return New("", kind)
	}
	defer gz.Close()

	raw, err := ioutil.ReadAll(gz)
	if err != nil {
		logger.Warnf("fingerprint db %s: read failed: %v, starting empty", path, err)
		return New("", kind)
	}

	var shape onDiskShape
	if err := json.Unmarshal(raw, &shape); err != nil {
		logger.Warnf("fingerprint db %s: parse failed: %v, starting empty", path, err)
		return New("", kind)
	}

	d := New(shape.Repo, kind)
	d.GeneratedAt = shape.GeneratedAt
	switch kind {
	case KindPRs:
		for k, v := range shape.PRs {
			d.PRs[k] = v
			d.insertionOrder = append(d.insertionOrder, k)
		}
	case KindCommits:
		for k, v := range shape.Commits {
			d.Commits[k] = v
			d.insertionOrder = append(d.insertionOrder, k)
		}
	}
	return d
}

// Save gzip-compresses the DB's JSON encoding and writes it atomically
// (via a temp file renamed into place) to path. A write failure here is
// fatal per §7's DB I/O policy.
func (d *DB) Save(path string) error {
	shape := onDiskShape{Repo: d.Repo, GeneratedAt: d.GeneratedAt, PRs: d.PRs, Commits: d.Commits}
	raw, err := json.Marshal(shape)
	if err != nil {
		return core.WithKind(core.KindDBIO, err, "marshaling fingerprint db")
	}

	tmp, err := ioutil.TempFile(dirOf(path), "fingerprint-db-*.tmp")
	if err != nil {
		return core.WithKind(core.KindDBIO, err, "creating temp fingerprint db file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	gz := gzip.NewWriter(tmp)
	if _, err := gz.Write(raw); err != nil {
		tmp.Close()
		return core.WithKind(core.KindDBIO, err, "writing gzipped fingerprint db")
	}
	if err := gz.Close(); err != nil {
		tmp.Close()
		return core.WithKind(core.KindDBIO, err, "closing gzip writer")
	}
	if err := tmp.Close(); err != nil {
		return core.WithKind(core.KindDBIO, err, "closing temp fingerprint db file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return core.WithKind(core.KindDBIO, err, "renaming temp fingerprint db into place")
	}
	d.dirty = 0
	return nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}

// UpsertPR inserts or overwrites a PR record, tracking insertion order and
// marking the DB dirty for checkpointing.
func (d *DB) UpsertPR(key string, rec PRRecord) {
	if _, exists := d.PRs[key]; !exists {
		d.insertionOrder = append(d.insertionOrder, key)
	}
	d.PRs[key] = rec
	d.dirty++
}

// UpsertCommit inserts or overwrites a commit record, tracking insertion
// order and marking the DB dirty for checkpointing.
func (d *DB) UpsertCommit(key string, rec CommitRecord) {
	if _, exists := d.Commits[key]; !exists {
		d.insertionOrder = append(d.insertionOrder, key)
	}
	d.Commits[key] = rec
	d.dirty++
}

// InsertionOrder returns record keys in the order they were first seen,
// for Layer-1 ranking tie-breaks.
func (d *DB) InsertionOrder() []string {
	out := make([]string, len(d.insertionOrder))
	copy(out, d.insertionOrder)
	return out
}

// MaybeCheckpoint saves the DB to path if at least `every` new/updated
// records have accumulated since the last save, matching §4.7's "checkpoint
// every 10 new records" refresh behavior (every defaults to 10 via New).
func (d *DB) MaybeCheckpoint(path string) error {
	if d.dirty < d.checkpointEvery {
		return nil
	}
	return d.Save(path)
}
