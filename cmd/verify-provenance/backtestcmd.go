package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/hostapi"
	"github.com/valkey-io/verify-provenance/internal/match"
)

type backtestOptions struct {
	configPath   string
	prDBPath     string
	commitDBPath string
	sourceOwner  string
	sourceRepo   string
	targetOwner  string
	targetRepo   string
	threshold    float64
	maxReport    int
	startPR      int
	endPR        int
	verbose      bool
}

// backtestOutcome classifies one target-repo PR's check() run, mirroring
// the Python original's PASS/FAIL/ERROR/NOT_FOUND bucketing.
type backtestOutcome string

const (
	outcomeMatch    backtestOutcome = "MATCH"
	outcomeNoMatch  backtestOutcome = "NO_MATCH"
	outcomeNotFound backtestOutcome = "NOT_FOUND"
	outcomeError    backtestOutcome = "ERROR"
)

func newBacktestCmd() *cobra.Command {
	opts := &backtestOptions{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run check against a range of target-repo PR numbers and summarize outcomes.",
		Long: `backtest iterates a closed range of target-repository PR numbers,
runs the provenance check against each one's diff, and reports how many
matched, missed, or errored - without shelling out to itself per PR.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.configPath, "config", "", "Path to a provenance config YAML file.")
	fs.StringVar(&opts.prDBPath, "pr-db", "", "Path to the PR fingerprint database.")
	fs.StringVar(&opts.commitDBPath, "commit-db", "", "Path to the commit fingerprint database.")
	fs.StringVar(&opts.sourceOwner, "source-owner", "", "Owner of the provenance-source repository.")
	fs.StringVar(&opts.sourceRepo, "source-repo", "", "Name of the provenance-source repository.")
	fs.StringVar(&opts.targetOwner, "target-owner", "", "Owner of the candidate-target repository.")
	fs.StringVar(&opts.targetRepo, "target-repo", "", "Name of the candidate-target repository.")
	fs.Float64Var(&opts.threshold, "threshold", match.DefaultLayer2Threshold, "Minimum similarity required to report a finding.")
	fs.IntVar(&opts.maxReport, "max-report", 5, "Maximum findings to accept per database per PR.")
	fs.IntVar(&opts.startPR, "start", 1, "First target-repo PR number to check.")
	fs.IntVar(&opts.endPR, "end", 1, "Last target-repo PR number to check (inclusive).")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging.")
	cmd.MarkFlagRequired("target-owner")
	cmd.MarkFlagRequired("target-repo")
	return cmd
}

func runBacktest(opts *backtestOptions) error {
	logger := newLogger(opts.verbose)
	cfg, err := loadConfig(opts.configPath, opts.sourceOwner+"/"+opts.sourceRepo, opts.targetOwner+"/"+opts.targetRepo)
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

	host := hostapi.NewGitHubHostAPI(githubToken(), logger)
	matchOpts := match.Options{
		Threshold:   opts.threshold,
		MaxReport:   opts.maxReport,
		SourceOwner: opts.sourceOwner,
		SourceRepo:  opts.sourceRepo,
	}

	counts := map[backtestOutcome]int{}
	var flaggedPreview []string
	ctx := context.Background()

	for number := opts.startPR; number <= opts.endPR; number++ {
		outcome, findings := backtestOne(ctx, host, opts.targetOwner, opts.targetRepo, number, prDB, commitDB, cfg, matchOpts, logger)
		counts[outcome]++
		if outcome == outcomeMatch && len(flaggedPreview) < 2 {
			repo := opts.sourceOwner + "/" + opts.sourceRepo
			flaggedPreview = append(flaggedPreview, fmt.Sprintf("PR #%d: %s", number, joinFindings(repo, findings)))
		}
	}

	fmt.Printf("backtest %s/%s PR #%d..#%d\n", opts.targetOwner, opts.targetRepo, opts.startPR, opts.endPR)
	fmt.Printf("  match:     %d\n", counts[outcomeMatch])
	fmt.Printf("  no_match:  %d\n", counts[outcomeNoMatch])
	fmt.Printf("  not_found: %d\n", counts[outcomeNotFound])
	fmt.Printf("  error:     %d\n", counts[outcomeError])
	for _, p := range flaggedPreview {
		fmt.Println("  " + p)
	}
	return nil
}

func backtestOne(ctx context.Context, host hostapi.HostAPI, owner, repo string, number int, prDB, commitDB *db.DB, cfg *core.ProvenanceConfig, matchOpts match.Options, logger core.Logger) (backtestOutcome, []match.Finding) {
	diff, _, err := host.FetchPRDiff(ctx, owner, repo, number)
	if err != nil {
		if core.IsKind(err, core.KindNotFound) {
			return outcomeNotFound, nil
		}
		logger.Warnf("pr #%d: %v", number, err)
		return outcomeError, nil
	}

	findings, err := match.CheckDiff(ctx, string(diff), prDB, commitDB, cfg, host, matchOpts, logger)
	if err != nil {
		logger.Warnf("pr #%d: %v", number, err)
		return outcomeError, nil
	}
	if len(findings) == 0 {
		return outcomeNoMatch, nil
	}
	return outcomeMatch, findings
}
