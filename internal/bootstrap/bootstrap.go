// Package bootstrap implements the commit fingerprint database bootstrap
// driver (C7, commit side): a shallow single-branch clone of a source
// repository into a private temp directory, enumerated chronologically
// and fingerprinted commit-by-commit via go-git's in-process diff
// rendering rather than shelling out to git show.
package bootstrap

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/storage/filesystem"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"

	"github.com/valkey-io/verify-provenance/internal/core"
	"github.com/valkey-io/verify-provenance/internal/db"
	"github.com/valkey-io/verify-provenance/internal/fingerprint"
)

// progressInterval mirrors PROGRESS_INTERVAL's commit-count log cadence.
const progressInterval = 100

// maxRepoBytes is the pack-data size ceiling a clone must not exceed
// before enumeration proceeds, replacing `git count-objects -v`'s
// size-pack field with a direct walk of the clone's storage directory.
const maxRepoBytes int64 = 1 << 30 // 1 GiB

// Options configures a Run.
type Options struct {
	SourceURL    string
	SourceRepo   string
	SourceBranch string
	CutoffDate   time.Time
	DBPath       string
	SSHIdentity  string
	MaxRepoBytes int64

	// OnProgress, when set, is called after each enumerated commit is
	// either fingerprinted or skipped, so a CLI can drive a progress bar
	// without this package depending on any presentation library.
	OnProgress func(done, total int)
}

func loadSSHIdentity(sshIdentity string) (transport.AuthMethod, error) {
	actual, err := homedir.Expand(sshIdentity)
	if err != nil {
		return nil, err
	}
	return gitssh.NewPublicKeysFromFile("git", actual, "")
}

// Run clones Options.SourceBranch of SourceURL into a private 0700 temp
// directory, refuses to proceed if the clone's pack data exceeds the size
// ceiling, walks the branch's commit history chronologically from
// CutoffDate, and upserts a fingerprint record per commit not already
// present in the database. The temp directory is removed on every exit
// path.
func Run(ctx context.Context, opts Options, config *core.ProvenanceConfig, logger core.Logger) (*db.DB, error) {
	ceiling := opts.MaxRepoBytes
	if ceiling <= 0 {
		ceiling = maxRepoBytes
	}

	tempDir, err := ioutil.TempDir("", "repo-clone-")
	if err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "creating clone temp dir")
	}
	defer os.RemoveAll(tempDir)
	if err := os.Chmod(tempDir, 0700); err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "securing clone temp dir")
	}

	logger.Infof("cloning %s (%s) into %s", opts.SourceURL, opts.SourceBranch, tempDir)
	storer := filesystem.NewStorage(osfs.New(tempDir), cache.NewObjectLRUDefault())
	cloneOpts := &git.CloneOptions{
		URL:           opts.SourceURL,
		ReferenceName: plumbing.NewBranchReferenceName(opts.SourceBranch),
		SingleBranch:  true,
		NoCheckout:    true,
	}
	if opts.SSHIdentity != "" {
		auth, err := loadSSHIdentity(opts.SSHIdentity)
		if err != nil {
			logger.Warnf("failed loading ssh identity %s: %v", opts.SSHIdentity, err)
		} else {
			cloneOpts.Auth = auth
		}
	}
	repository, err := git.CloneContext(ctx, storer, nil, cloneOpts)
	if err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "cloning source repository")
	}

	size, err := dirSize(tempDir)
	if err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "measuring clone size")
	}
	if size > ceiling {
		return nil, core.WithKindf(core.KindResourcePolicy, errors.New("repository exceeds configured size ceiling"), "clone is %d bytes, exceeds %d byte ceiling", size, ceiling)
	}

	ref, err := repository.Reference(plumbing.NewBranchReferenceName(opts.SourceBranch), true)
	if err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "resolving branch reference")
	}

	logger.Infof("enumerating commits since %s", opts.CutoffDate.Format(time.RFC3339))
	cutoff := opts.CutoffDate
	commitIter, err := repository.Log(&git.LogOptions{From: ref.Hash(), Since: &cutoff})
	if err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "walking commit log")
	}

	var commits []*object.Commit
	if err := commitIter.ForEach(func(c *object.Commit) error {
		commits = append(commits, c)
		return nil
	}); err != nil {
		return nil, core.WithKind(core.KindResourcePolicy, err, "walking commit log")
	}
	// go-git's Log yields newest-first; rev-list --reverse wants oldest-first.
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Committer.When.Before(commits[j].Committer.When)
	})

	d := db.Load(opts.DBPath, db.KindCommits, logger)
	d.Repo = opts.SourceRepo
	builder := fingerprint.NewBuilder(config)

	for idx, c := range commits {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		sha := c.Hash.String()
		if _, exists := d.Commits[sha]; exists {
			if opts.OnProgress != nil {
				opts.OnProgress(idx+1, len(commits))
			}
			continue
		}
		diffText, err := commitDiffText(c)
		if err != nil {
			logger.Warnf("failed rendering diff for %s: %v", sha, err)
			if opts.OnProgress != nil {
				opts.OnProgress(idx+1, len(commits))
			}
			continue
		}
		fp := builder.BuildFingerprint(diffText)
		d.UpsertCommit(sha, db.CommitRecord{
			SHA:       sha,
			Date:      c.Committer.When.UTC(),
			SimHash64: fp.SimHash64,
			PatchID:   fp.PatchID,
			Files:     fp.Files,
		})
		if (idx+1)%progressInterval == 0 {
			logger.Infof("processed %d/%d", idx+1, len(commits))
		}
		if opts.OnProgress != nil {
			opts.OnProgress(idx+1, len(commits))
		}
		if err := d.MaybeCheckpoint(opts.DBPath); err != nil {
			logger.Warnf("checkpoint failed: %v", err)
		}
	}

	d.GeneratedAt = time.Now().UTC()
	if err := d.Save(opts.DBPath); err != nil {
		return d, err
	}
	logger.Infof("wrote %d commits to %s", len(d.Commits), opts.DBPath)
	return d, nil
}

// commitDiffText renders the unified diff introduced by c relative to its
// first parent (or the empty tree, for a root commit), mirroring `git show
// --no-color` closely enough for C1 to tokenize - without shelling out.
func commitDiffText(c *object.Commit) (string, error) {
	var fromTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return "", err
		}
		fromTree, err = parent.Tree()
		if err != nil {
			return "", err
		}
	}
	toTree, err := c.Tree()
	if err != nil {
		return "", err
	}
	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return "", err
	}
	patch, err := changes.Patch()
	if err != nil {
		return "", err
	}
	return patch.String(), nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
