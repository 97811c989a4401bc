package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	progress "gopkg.in/cheggaaa/pb.v1"

	"github.com/valkey-io/verify-provenance/internal/bootstrap"
)

type bootstrapOptions struct {
	configPath   string
	sourceURL    string
	sourceRepo   string
	sourceBranch string
	dbPath       string
	since        string
	sshIdentity  string
	maxRepoMB    int64
	quiet        bool
	verbose      bool
}

func newBootstrapCmd() *cobra.Command {
	opts := &bootstrapOptions{}
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap the commit fingerprint database by shallow-cloning the source repository.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBootstrap(opts)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.configPath, "config", "", "Path to a provenance config YAML file.")
	fs.StringVar(&opts.sourceURL, "source-url", "", "Clone URL of the source repository.")
	fs.StringVar(&opts.sourceRepo, "source-repo", "", "Name of the source repository, used as the DB's repo label.")
	fs.StringVar(&opts.sourceBranch, "source-branch", "main", "Branch to clone and enumerate.")
	fs.StringVar(&opts.dbPath, "commit-db", "", "Path to the commit fingerprint database to write.")
	fs.StringVar(&opts.since, "since", "", "RFC3339 cutoff date; commits older than this are not enumerated.")
	fs.StringVar(&opts.sshIdentity, "ssh-identity", "", "Path to an SSH identity file, for SSH clone URLs.")
	fs.Int64Var(&opts.maxRepoMB, "max-repo-mb", 1024, "Pack-data size ceiling in MiB; clone is rejected above it.")
	fs.BoolVar(&opts.quiet, "quiet", false, "Do not print a progress bar.")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging.")
	cmd.MarkFlagRequired("source-url")
	cmd.MarkFlagRequired("source-repo")
	cmd.MarkFlagRequired("commit-db")
	return cmd
}

func runBootstrap(opts *bootstrapOptions) error {
	logger := newLogger(opts.verbose)

	var cutoff time.Time
	if opts.since != "" {
		t, err := time.Parse(time.RFC3339, opts.since)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}
		cutoff = t
	}

	cfg, err := loadConfig(opts.configPath, opts.sourceRepo, "")
	if err != nil {
		return err
	}

	runOpts := bootstrap.Options{
		SourceURL:    opts.sourceURL,
		SourceRepo:   opts.sourceRepo,
		SourceBranch: opts.sourceBranch,
		CutoffDate:   cutoff,
		DBPath:       opts.dbPath,
		SSHIdentity:  opts.sshIdentity,
		MaxRepoBytes: opts.maxRepoMB * 1024 * 1024,
	}

	var bar *progress.ProgressBar
	if !opts.quiet {
		runOpts.OnProgress = func(done, total int) {
			if bar == nil {
				bar = progress.New(total)
				bar.ShowTimeLeft = true
				bar.SetMaxWidth(80).Start()
			}
			bar.Set(done)
		}
	}

	d, err := bootstrap.Run(context.Background(), runOpts, cfg, logger)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "bootstrapped %s: %d commit fingerprints\n", d.Repo, len(d.Commits))
	return nil
}
