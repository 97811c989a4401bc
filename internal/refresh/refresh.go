// Package refresh implements the PR fingerprint database refresh driver
// (C7, PR side): paginating a source repository's pull requests, skipping
// the ones not worth fingerprinting, and upserting the rest into the
// fingerprint database with periodic checkpointing.
package refresh

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
	"github.com/valkey-io/verify-provenance/internal/hostapi"
)

const (
	perPage  = 100
	maxPages = 100
)

// ShouldSkipPR reports whether a PR is not worth fingerprinting: a branch
// merge, a release PR, a PR against a bare main/unstable/master branch
// title, or one touching more files than is useful to fingerprint.
func ShouldSkipPR(title string, changedFiles int) bool {
	lower := strings.ToLower(title)
	if strings.Contains(lower, "merge") && strings.Contains(lower, "into") {
		return true
	}
	if strings.Contains(lower, "release") || strings.HasPrefix(lower, "release/") {
		return true
	}
	switch lower {
	case "main", "unstable", "master":
		return true
	}
	if changedFiles > 50 {
		return true
	}
	return false
}

// Options configures a Run.
type Options struct {
	SourceOwner string
	SourceRepo  string
	CutoffDate  time.Time
	DBPath      string

	// OnProgress, when set, is called after each candidate PR is either
	// fingerprinted or skipped, so a CLI can drive a progress indicator
	// without this package depending on any presentation library.
	OnProgress func(processed int)
}

// Run walks the open, then closed, PR listing pages (newest first),
// stopping each state once it reaches PRs no newer than the latest
// already-fingerprinted PR (or, for an empty DB, the configured cutoff
// date), fingerprinting and upserting the rest, checkpointing every 10
// upserts. It mirrors refresh_prs.py's refresh_prs driver.
func Run(ctx context.Context, opts Options, host hostapi.HostAPI, config *core.ProvenanceConfig, logger core.Logger) (*db.DB, error) {
	d := db.Load(opts.DBPath, db.KindPRs, logger)
	d.Repo = opts.SourceOwner + "/" + opts.SourceRepo

	since := latestCreatedAt(d, opts.CutoffDate)
	builder := fingerprint.NewBuilder(config)

	if report := opts.OnProgress; report != nil {
		processed := 0
		opts.OnProgress = func(int) { processed++; report(processed) }
	}

	for _, state := range []string{"open", "closed"} {
		if err := refreshState(ctx, state, since, opts, host, builder, d, logger); err != nil {
			return d, err
		}
	}

	d.GeneratedAt = time.Now().UTC()
	if err := d.Save(opts.DBPath); err != nil {
		return d, err
	}
	return d, nil
}

func latestCreatedAt(d *db.DB, cutoff time.Time) time.Time {
	if len(d.PRs) == 0 {
		return cutoff
	}
	var latest time.Time
	for _, rec := range d.PRs {
		if rec.CreatedAt.After(latest) {
			latest = rec.CreatedAt
		}
	}
	return latest
}

func refreshState(ctx context.Context, state string, since time.Time, opts Options, host hostapi.HostAPI, builder *fingerprint.Builder, d *db.DB, logger core.Logger) error {
	for page := 1; page <= maxPages; page++ {
		prs, err := host.ListPullRequests(ctx, opts.SourceOwner, opts.SourceRepo, state, page, perPage)
		if err != nil {
			return err
		}
		if len(prs) == 0 {
			return nil
		}

		recent := make([]hostapi.PRSummary, 0, len(prs))
		for _, pr := range prs {
			if pr.CreatedAt.After(since) {
				recent = append(recent, pr)
			}
		}
		stop := len(recent) < len(prs)

		for i, pr := range recent {
			if err := ctx.Err(); err != nil {
				return err
			}
			refreshOnePR(ctx, pr, opts, host, builder, d, logger)
			if opts.OnProgress != nil {
				opts.OnProgress(i + 1)
			}
		}

		if stop {
			return nil
		}
	}
	return nil
}

func refreshOnePR(ctx context.Context, pr hostapi.PRSummary, opts Options, host hostapi.HostAPI, builder *fingerprint.Builder, d *db.DB, logger core.Logger) {
	key := strconv.Itoa(pr.Number)
	if existing, ok := d.PRs[key]; ok && !pr.UpdatedAt.After(existing.UpdatedAt) {
		return
	}
	if ShouldSkipPR(pr.Title, pr.ChangedFiles) {
		return
	}

	diff, _, err := host.FetchPRDiff(ctx, opts.SourceOwner, opts.SourceRepo, pr.Number)
	if err != nil {
		logger.Warnf("failed pr #%d: %v", pr.Number, err)
		return
	}
	diffText := string(diff)
	fp := builder.BuildFingerprint(diffText)

	d.UpsertPR(key, db.PRRecord{
		Number:    pr.Number,
		State:     pr.State,
		CreatedAt: pr.CreatedAt,
		UpdatedAt: pr.UpdatedAt,
		SimHash64: fp.SimHash64,
		PatchID:   fp.PatchID,
		Files:     fp.Files,
	})

	if err := d.MaybeCheckpoint(opts.DBPath); err != nil {
		logger.Warnf("checkpoint failed: %v", err)
		return
	}
	logger.Debugf("fingerprinted pr #%d", pr.Number)
}
