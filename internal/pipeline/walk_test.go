package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
	"git.home.luguber.info/inful/mdxflatten/internal/manifest"
	"git.home.luguber.info/inful/mdxflatten/internal/state"
)

// walkerConfig builds a defaulted config over a fixture source tree.
func walkerConfig(t *testing.T, source string, platforms ...string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Source:    config.SourceConfig{Path: source},
		Output:    filepath.Join(t.TempDir(), "out"),
		Platforms: platforms,
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func fixtureTree(t *testing.T) string {
	t.Helper()
	return writeTree(t, map[string]string{
		"src/pages/[platform]/index.mdx": `export const meta = {
  title: "Home",
  description: "Landing page"
};

# Welcome
`,
		"src/pages/[platform]/start/index.mdx": `export const meta = {
  title: "Start",
  platforms: ["react"]
};

Getting started.
`,
		"src/pages/[platform]/start/deep/index.mdx": `export const meta = { title: "Deep" };

Should be pruned along with start/ for non-react platforms.
`,
		"src/pages/[platform]/gen1/index.mdx": `export const meta = { title: "Legacy" };

Never visited.
`,
		"src/pages/[platform]/nometa/index.mdx": "Plain text, no metadata.\n",
		"src/pages/[platform]/nometa/child/index.mdx": `export const meta = { title: "Child" };

Child body.
`,
		"src/pages/[platform]/lib/[platform]/index.mdx": `export const meta = { title: "Lib" };

Library docs.
`,
	})
}

func TestWalkerRun_TreeWalk(t *testing.T) {
	cfg := walkerConfig(t, fixtureTree(t), "react", "flutter")
	w := NewWalker(cfg, New(cfg.Source.Path), nil, nil)

	man, sum, err := w.Run(context.Background())
	require.NoError(t, err)

	// react emits 5 documents; flutter is pruned out of start/ and emits 3.
	emitted, skipped, failed := sum.Counts()
	require.Equal(t, 8, emitted)
	require.Equal(t, 3, skipped)
	require.Equal(t, 0, failed)

	// react sees the full tree.
	for _, rel := range []string{
		"react/index.md",
		"react/start/index.md",
		"react/start/deep/index.md",
		"react/nometa/child/index.md",
		"react/lib/index.md", // placeholder directory collapsed
	} {
		_, statErr := os.Stat(filepath.Join(cfg.Output, rel))
		require.NoError(t, statErr, rel)
	}

	// flutter is excluded from start/, pruning the subtree.
	_, err = os.Stat(filepath.Join(cfg.Output, "flutter/start"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.Output, "flutter/nometa/child/index.md"))
	require.NoError(t, err)

	// Skip dirs are never entered.
	_, err = os.Stat(filepath.Join(cfg.Output, "react/gen1"))
	require.True(t, os.IsNotExist(err))

	require.Equal(t, 8, man.Emitted)
	require.Equal(t, 3, man.Skipped)
	require.Equal(t, 0, man.Failed)
	require.Len(t, man.Documents, 8)

	read, err := manifest.Read(cfg.Output)
	require.NoError(t, err)
	require.Equal(t, man.Emitted, read.Emitted)
	require.ElementsMatch(t, cfg.Platforms, read.Platforms)
}

func TestWalkerRun_FrontmatterEmission(t *testing.T) {
	cfg := walkerConfig(t, fixtureTree(t), "react")
	w := NewWalker(cfg, New(cfg.Source.Path), nil, nil)

	_, _, err := w.Run(context.Background())
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(cfg.Output, "react/index.md"))
	require.NoError(t, err)
	text := string(out)

	require.Contains(t, text, "---\ntitle: Home\ndescription: Landing page\n---\n")
	require.Contains(t, text, "# Welcome")
	require.NotContains(t, text, "export const meta")
}

func TestWalkerRun_RequireMetaDisabled(t *testing.T) {
	cfg := walkerConfig(t, fixtureTree(t), "react")
	off := false
	cfg.RequireMeta = &off
	w := NewWalker(cfg, New(cfg.Source.Path), nil, nil)

	_, sum, err := w.Run(context.Background())
	require.NoError(t, err)

	_, skipped, _ := sum.Counts()
	require.Equal(t, 0, skipped)

	out, err := os.ReadFile(filepath.Join(cfg.Output, "react/nometa/index.md"))
	require.NoError(t, err)
	require.Equal(t, "Plain text, no metadata.\n", string(out))
}

func TestWalkerRun_IncrementalSkip(t *testing.T) {
	cfg := walkerConfig(t, fixtureTree(t), "react")
	store, err := state.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	w := NewWalker(cfg, New(cfg.Source.Path), store, nil)
	ctx := context.Background()

	_, first, err := w.Run(ctx)
	require.NoError(t, err)
	firstEmitted, _, _ := first.Counts()
	require.Equal(t, 5, firstEmitted)

	_, second, err := w.Run(ctx)
	require.NoError(t, err)
	secondEmitted, secondSkipped, _ := second.Counts()
	require.Equal(t, 0, secondEmitted)
	require.Equal(t, 6, secondSkipped) // 5 unchanged + the no-meta skip

	// Touching a source document re-emits just that document.
	home := filepath.Join(cfg.Source.Path, "src/pages/[platform]/index.mdx")
	require.NoError(t, os.WriteFile(home, []byte("export const meta = { title: \"Home v2\" };\n\nUpdated.\n"), 0o644))

	_, third, err := w.Run(ctx)
	require.NoError(t, err)
	thirdEmitted, _, _ := third.Counts()
	require.Equal(t, 1, thirdEmitted)
}

func TestWalkerRun_DeletedOutputRebuilt(t *testing.T) {
	cfg := walkerConfig(t, fixtureTree(t), "react")
	store, err := state.Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	w := NewWalker(cfg, New(cfg.Source.Path), store, nil)
	ctx := context.Background()

	_, _, err = w.Run(ctx)
	require.NoError(t, err)

	target := filepath.Join(cfg.Output, "react/index.md")
	require.NoError(t, os.Remove(target))

	// Unchanged hash but missing output still rebuilds.
	_, sum, err := w.Run(ctx)
	require.NoError(t, err)
	emitted, _, _ := sum.Counts()
	require.Equal(t, 1, emitted)
	_, err = os.Stat(target)
	require.NoError(t, err)
}

func TestWalkerRun_CancelledContext(t *testing.T) {
	cfg := walkerConfig(t, fixtureTree(t), "react")
	w := NewWalker(cfg, New(cfg.Source.Path), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := w.Run(ctx)
	require.Error(t, err)
}
