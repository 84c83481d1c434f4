// Package gitsource materializes a remote document tree into the local
// source path before a build.
package gitsource

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
	"git.home.luguber.info/inful/mdxflatten/internal/errors"
	"git.home.luguber.info/inful/mdxflatten/internal/logfields"
	"git.home.luguber.info/inful/mdxflatten/internal/retry"
)

// Sync ensures cfg.Source.Path holds a checkout of cfg.Source.Repo.
//
// An existing clone is pulled; anything else is cloned fresh. When no repo
// is configured Sync is a no-op and the source path is used as-is. Transfers
// retry per the source retry policy.
func Sync(ctx context.Context, src config.SourceConfig) error {
	if src.Repo == "" {
		return nil
	}
	policy := retry.FromConfig(src.Retry)
	if _, err := os.Stat(filepath.Join(src.Path, ".git")); err == nil {
		return policy.Do(ctx, func() error { return pull(ctx, src) })
	}
	return policy.Do(ctx, func() error { return clone(ctx, src) })
}

func clone(ctx context.Context, src config.SourceConfig) error {
	slog.Info("Cloning source repository", logfields.Repo(src.Repo), logfields.Path(src.Path), slog.String("branch", src.Branch))

	if err := os.RemoveAll(src.Path); err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, "failed to clear source path").
			WithContext("path", src.Path).
			Build()
	}

	opts := &git.CloneOptions{URL: src.Repo}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		opts.SingleBranch = true
	}

	repo, err := git.PlainCloneContext(ctx, src.Path, false, opts)
	if err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, "failed to clone source repository").
			WithContext("repo", src.Repo).
			Build()
	}

	if ref, err := repo.Head(); err == nil {
		slog.Info("Source repository cloned", logfields.Repo(src.Repo), slog.String("commit", short(ref.Hash().String())))
	}
	return nil
}

func pull(ctx context.Context, src config.SourceConfig) error {
	slog.Debug("Updating source repository", logfields.Repo(src.Repo), logfields.Path(src.Path))

	repo, err := git.PlainOpen(src.Path)
	if err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, "failed to open source repository").
			WithContext("path", src.Path).
			Build()
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, errors.CategoryFileSystem, "failed to get worktree").
			WithContext("path", src.Path).
			Build()
	}

	opts := &git.PullOptions{RemoteName: "origin"}
	if src.Branch != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + src.Branch)
		opts.SingleBranch = true
	}

	err = worktree.PullContext(ctx, opts)
	switch {
	case err == git.NoErrAlreadyUpToDate:
		slog.Info("Source repository already up to date", logfields.Repo(src.Repo))
	case err != nil:
		return errors.Wrap(err, errors.CategoryFileSystem, "failed to pull source repository").
			WithContext("repo", src.Repo).
			Build()
	default:
		if ref, headErr := repo.Head(); headErr == nil {
			slog.Info("Source repository updated", logfields.Repo(src.Repo), slog.String("commit", short(ref.Hash().String())))
		}
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
