package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitobject "github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
	"git.home.luguber.info/inful/mdxflatten/internal/errors"
)

func TestSync_NoRepoConfigured_NoOp(t *testing.T) {
	dir := t.TempDir()
	err := Sync(context.Background(), config.SourceConfig{Path: dir})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// newLocalRepo creates a committed repository on disk usable as a clone URL.
func newLocalRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.mdx"), []byte("hello\n"), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("index.mdx")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &gitobject.Signature{Name: "test", Email: "test@example.com"},
	})
	require.NoError(t, err)
	return dir
}

func TestSync_ClonesAndUpdates(t *testing.T) {
	remote := newLocalRepo(t)
	target := filepath.Join(t.TempDir(), "checkout")
	src := config.SourceConfig{Path: target, Repo: remote}

	require.NoError(t, Sync(context.Background(), src))
	_, err := os.Stat(filepath.Join(target, "index.mdx"))
	require.NoError(t, err)

	// Second sync takes the pull path.
	require.NoError(t, Sync(context.Background(), src))
}

func TestSync_BadRemote_FailsAfterRetries(t *testing.T) {
	src := config.SourceConfig{
		Path: filepath.Join(t.TempDir(), "checkout"),
		Repo: filepath.Join(t.TempDir(), "does-not-exist"),
		Retry: config.RetryConfig{
			Mode:       config.RetryBackoffFixed,
			Initial:    time.Millisecond,
			Max:        time.Millisecond,
			MaxRetries: 1,
		},
	}
	err := Sync(context.Background(), src)
	require.Error(t, err)
	require.Equal(t, errors.CategoryFileSystem, errors.CategoryOf(err))
}
