package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	progress "gopkg.in/cheggaaa/pb.v1"

	"github.com/valkey-io/verify-provenance/internal/hostapi"
	"github.com/valkey-io/verify-provenance/internal/refresh"
)

type refreshOptions struct {
	configPath  string
	sourceOwner string
	sourceRepo  string
	dbPath      string
	since       string
	quiet       bool
	verbose     bool
}

func newRefreshCmd() *cobra.Command {
	opts := &refreshOptions{}
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Incrementally refresh the PR fingerprint database from the source repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.configPath, "config", "", "Path to a provenance config YAML file.")
	fs.StringVar(&opts.sourceOwner, "source-owner", "", "Owner of the source repository.")
	fs.StringVar(&opts.sourceRepo, "source-repo", "", "Name of the source repository.")
	fs.StringVar(&opts.dbPath, "pr-db", "", "Path to the PR fingerprint database to update.")
	fs.StringVar(&opts.since, "bootstrap-cutoff", "", "RFC3339 cutoff used only when --pr-db is empty or missing.")
	fs.BoolVar(&opts.quiet, "quiet", false, "Do not print a progress indicator.")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging.")
	cmd.MarkFlagRequired("source-owner")
	cmd.MarkFlagRequired("source-repo")
	cmd.MarkFlagRequired("pr-db")
	return cmd
}

func runRefresh(opts *refreshOptions) error {
	logger := newLogger(opts.verbose)
	cutoff := time.Time{}
	if opts.since != "" {
		t, err := time.Parse(time.RFC3339, opts.since)
		if err != nil {
			return fmt.Errorf("parsing --bootstrap-cutoff: %w", err)
		}
		cutoff = t
	}

	cfg, err := loadConfig(opts.configPath, opts.sourceOwner+"/"+opts.sourceRepo, "")
	if err != nil {
		return err
	}

	host := hostapi.NewGitHubHostAPI(githubToken(), logger)

	var bar *progress.ProgressBar
	runOpts := refresh.Options{
		SourceOwner: opts.sourceOwner,
		SourceRepo:  opts.sourceRepo,
		CutoffDate:  cutoff,
		DBPath:      opts.dbPath,
	}
	if !opts.quiet {
		bar = progress.New(0)
		bar.ShowTimeLeft = false
		bar.SetMaxWidth(80).Start()
		runOpts.OnProgress = func(processed int) {
			bar.Set(processed)
		}
		defer bar.Finish()
	}

	d, err := refresh.Run(context.Background(), runOpts, host, cfg, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "refreshed %s: %d PR fingerprints\n", d.Repo, len(d.PRs))
	return nil
}
