package main

import (
	"os"

	"github.com/valkey-io/verify-provenance/internal/core"
)

// loadConfig reads the provenance config file when configPath is set,
// otherwise returns a bare config built from the source/target repo
// flags alone - useful for quick ad hoc checks with no branding pairs.
func loadConfig(configPath, sourceRepo, targetRepo string) (*core.ProvenanceConfig, error) {
	if configPath == "" {
		return &core.ProvenanceConfig{SourceRepo: sourceRepo, TargetRepo: targetRepo}, nil
	}
	cfg, err := core.LoadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	if sourceRepo != "" {
		cfg.SourceRepo = sourceRepo
	}
	if targetRepo != "" {
		cfg.TargetRepo = targetRepo
	}
	return cfg, nil
}

// newLogger returns a new DefaultLogger, honoring --verbose.
func newLogger(verbose bool) *core.DefaultLogger {
	l := core.NewLogger()
	l.Verbose = verbose
	return l
}

// githubToken resolves the host auth token from GITHUB_TOKEN, matching
// §6's "Environment" contract.
func githubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}
