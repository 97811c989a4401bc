package main

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
	"github.com/valkey-io/verify-provenance/internal/hostapi"
	"github.com/valkey-io/verify-provenance/internal/match"
)

type checkOptions struct {
	configPath   string
	prDBPath     string
	commitDBPath string
	sourceOwner  string
	sourceRepo   string
	targetRepo   string
	threshold    float64
	maxReport    int
	poolSize     int
	ignoreDate   bool
	queryDate    string
	noFetch      bool
	noGit        bool
	verbose      bool

	extraBrandingPairs []core.BrandPair
}

func newCheckCmd() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check [diff-file|-]",
		Short: "Check a unified diff for provenance against the fingerprint databases.",
		Long: `check reads a unified diff - from a file, from stdin via "-", or (with
no argument) by diffing BASE_SHA..HEAD_SHA in the current repository - and
reports any PR or commit in the configured fingerprint databases it
likely originated from.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args, opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.configPath, "config", "", "Path to a provenance config YAML file.")
	fs.StringVar(&opts.prDBPath, "pr-db", "", "Path to the PR fingerprint database (gzipped JSON).")
	fs.StringVar(&opts.commitDBPath, "commit-db", "", "Path to the commit fingerprint database (gzipped JSON).")
	fs.StringVar(&opts.sourceOwner, "source-owner", "", "Owner of the provenance-source repository, for Layer-2 fetches.")
	fs.StringVar(&opts.sourceRepo, "source-repo", "", "Name of the provenance-source repository, for Layer-2 fetches.")
	fs.StringVar(&opts.targetRepo, "target-repo", "", "Name of the candidate-target repository, for report output.")
	fs.Float64Var(&opts.threshold, "threshold", match.DefaultLayer2Threshold, "Minimum similarity required to report a finding.")
	fs.IntVar(&opts.maxReport, "max-report", 5, "Maximum number of findings to report per database.")
	fs.IntVar(&opts.poolSize, "pool-size", 4, "Worker pool size for Layer-1 scan and Layer-2 fan-out.")
	fs.BoolVar(&opts.ignoreDate, "ignore-date", false, "Disable the created-at/commit-date cutoff filter.")
	fs.StringVar(&opts.queryDate, "date", "", "Query timestamp (RFC3339) used as an additional date cutoff.")
	fs.BoolVar(&opts.noFetch, "no-fetch", false, "Skip Layer-2 deep validation; report Layer-1 similarity only.")
	fs.BoolVar(&opts.noGit, "no-git", false, "Compute patch-ids with HighwayHash instead of shelling out to `git patch-id`.")
	registerBrandingPairFlag(fs, &opts.extraBrandingPairs)
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging.")
	return cmd
}

func readDiffInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		raw, err := ioutil.ReadFile(args[0])
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	if len(args) == 1 && args[0] == "-" {
		raw, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}

	base, head := os.Getenv("BASE_SHA"), os.Getenv("HEAD_SHA")
	if base == "" || head == "" {
		return "", fmt.Errorf("no diff file given and BASE_SHA/HEAD_SHA are not both set")
	}
	out, err := exec.Command("git", "diff", "--no-color", base+".."+head).Output()
	if err != nil {
		return "", fmt.Errorf("running git diff %s..%s: %w", base, head, err)
	}
	return string(out), nil
}

func runCheck(cmd *cobra.Command, args []string, opts *checkOptions) error {
	logger := newLogger(opts.verbose)
	cfg, err := loadConfig(opts.configPath, opts.sourceOwner+"/"+opts.sourceRepo, opts.targetRepo)
	if err != nil {
		return err
	}
	cfg.BrandingPairs = append(cfg.BrandingPairs, opts.extraBrandingPairs...)

	diffText, err := readDiffInput(args)
	if err != nil {
		return err
	}

	var prDB, commitDB *db.DB
	if opts.prDBPath != "" {
		prDB = db.Load(opts.prDBPath, db.KindPRs, logger)
	}
	if opts.commitDBPath != "" {
		commitDB = db.Load(opts.commitDBPath, db.KindCommits, logger)
	}
	if prDB == nil && commitDB == nil {
		return fmt.Errorf("at least one of --pr-db or --commit-db must be given")
	}

	var host hostapi.HostAPI
	if !opts.noFetch {
		host = hostapi.NewGitHubHostAPI(githubToken(), logger)
	}

	matchOpts := match.Options{
		Threshold:   opts.threshold,
		MaxReport:   opts.maxReport,
		IgnoreDate:  opts.ignoreDate,
		PoolSize:    opts.poolSize,
		SourceOwner: opts.sourceOwner,
		SourceRepo:  opts.sourceRepo,
	}
	if opts.noGit {
		matchOpts.PatchIDer = fingerprint.HighwayHashPatchID{}
	}
	if opts.queryDate != "" {
		t, err := time.Parse(time.RFC3339, opts.queryDate)
		if err != nil {
			return fmt.Errorf("parsing --date: %w", err)
		}
		matchOpts.QueryTimestamp = &t
	}

	if opts.verbose {
		printRunSummary(os.Stderr, runSummary{
			SourceRepo:   opts.sourceOwner + "/" + opts.sourceRepo,
			TargetRepo:   opts.targetRepo,
			Threshold:    opts.threshold,
			MaxReport:    opts.maxReport,
			PRDBPath:     opts.prDBPath,
			CommitDBPath: opts.commitDBPath,
			IgnoreDate:   opts.ignoreDate,
		})
	}

	findings, err := match.CheckDiff(context.Background(), diffText, prDB, commitDB, cfg, host, matchOpts, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(findings) == 0 {
		fmt.Fprintln(os.Stderr, "no provenance match found")
		return nil
	}

	repo := strings.TrimPrefix(opts.sourceOwner+"/"+opts.sourceRepo, "/")
	fmt.Fprintln(os.Stderr, joinFindings(repo, findings))
	for _, f := range findings {
		fmt.Println(formatFinding(repo, f))
	}
	os.Exit(1)
	return nil
}
