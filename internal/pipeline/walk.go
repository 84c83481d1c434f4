package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
	"git.home.luguber.info/inful/mdxflatten/internal/logfields"
	"git.home.luguber.info/inful/mdxflatten/internal/manifest"
	"git.home.luguber.info/inful/mdxflatten/internal/markdown"
	"git.home.luguber.info/inful/mdxflatten/internal/meta"
	"git.home.luguber.info/inful/mdxflatten/internal/observability"
	"git.home.luguber.info/inful/mdxflatten/internal/state"
	"git.home.luguber.info/inful/mdxflatten/internal/util/sets"
)

// Walker flattens the configured document tree once per platform.
//
// Platforms are mutually independent and walked concurrently; within one
// document the passes are strictly sequential. Failures never cross a
// directory-walk boundary: they are recorded and the walk continues.
type Walker struct {
	cfg     *config.Config
	pipe    *Pipeline
	store   *state.Store
	metrics *observability.Metrics
}

// NewWalker wires a walker. store and metrics may be nil.
func NewWalker(cfg *config.Config, pipe *Pipeline, store *state.Store, metrics *observability.Metrics) *Walker {
	return &Walker{cfg: cfg, pipe: pipe, store: store, metrics: metrics}
}

// Run walks the tree for every configured platform and writes the manifest.
func (w *Walker) Run(ctx context.Context) (*manifest.Manifest, *Summary, error) {
	sum := &Summary{}
	pagesRoot := filepath.Join(w.cfg.Source.Path, w.cfg.Source.Pages)
	skip := sets.New(w.cfg.SkipDirs...)
	slog.Info("Starting flatten run",
		logfields.Path(pagesRoot),
		"platforms", sets.Values(sets.New(w.cfg.Platforms...)))

	var group WorkerGroup
	for _, platform := range w.cfg.Platforms {
		platform := platform
		group.Go(func() {
			outRoot := filepath.Join(w.cfg.Output, platform)
			w.walkDir(observability.WithPlatform(ctx, platform), pagesRoot, outRoot, platform, skip, sum)
		})
	}
	if err := group.Wait(ctx); err != nil {
		return nil, sum, err
	}
	if err := ctx.Err(); err != nil {
		return nil, sum, err
	}

	man := manifest.New(w.cfg.Platforms)
	for _, doc := range sum.Emitted() {
		man.Add(doc)
	}
	_, man.Skipped, man.Failed = sum.Counts()
	if err := man.Write(w.cfg.Output); err != nil {
		return man, sum, err
	}
	return man, sum, nil
}

// walkDir processes one directory and recurses into its children.
func (w *Walker) walkDir(ctx context.Context, dir, outDir, platform string, skip sets.Set[string], sum *Summary) {
	if ctx.Err() != nil {
		return
	}

	index := filepath.Join(dir, w.cfg.IndexFile)
	if raw, err := os.ReadFile(index); err == nil {
		if !w.processIndex(ctx, index, raw, outDir, platform, sum) {
			// Directory metadata excludes this platform: prune the subtree.
			return
		}
	} else if !os.IsNotExist(err) {
		slog.Error("Failed to read index document, continuing walk",
			append(observability.Attrs(ctx), "path", index, "error", err)...)
		sum.AddFailed(index, platform, err)
		w.metrics.IncFailed(platform)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Error("Failed to list directory, continuing walk",
			append(observability.Attrs(ctx), "path", dir, "error", err)...)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || skip.Has(entry.Name()) {
			continue
		}
		outSub := filepath.Join(outDir, entry.Name())
		if entry.Name() == w.cfg.Placeholder {
			// The placeholder segment collapses: the output root is already
			// platform-named.
			outSub = outDir
		}
		w.walkDir(ctx, filepath.Join(dir, entry.Name()), outSub, platform, skip, sum)
	}
}

// processIndex flattens one index document. It returns false when the
// document's platform list excludes the current platform, which prunes the
// enclosing directory's subtree.
func (w *Walker) processIndex(ctx context.Context, path string, raw []byte, outDir, platform string, sum *Summary) bool {
	ctx = observability.WithDocument(ctx, path)

	m, _ := meta.Extract(string(raw))
	if len(m.Platforms) > 0 && !contains(m.Platforms, platform) {
		sum.AddSkipped(path, platform, observability.SkipPlatformExcluded)
		w.metrics.IncSkipped(platform, observability.SkipPlatformExcluded)
		return false
	}

	if m.IsZero() && w.cfg.MetaRequired() {
		sum.AddSkipped(path, platform, observability.SkipNoMeta)
		w.metrics.IncSkipped(platform, observability.SkipNoMeta)
		return true
	}

	outPath := filepath.Join(outDir, "index.md")
	hash := state.Hash(raw)
	if unchanged, err := w.store.Unchanged(ctx, path, platform, hash); err == nil && unchanged {
		if _, statErr := os.Stat(outPath); statErr == nil {
			sum.AddSkipped(path, platform, observability.SkipUnchanged)
			w.metrics.IncSkipped(platform, observability.SkipUnchanged)
			return true
		}
	}

	start := time.Now()
	res, err := w.pipe.Resolve(ctx, docmodel.Parse(path, raw), platform)
	w.metrics.ObserveResolveDuration(platform, time.Since(start))
	if err != nil {
		slog.Error("Document resolution failed", append(observability.Attrs(ctx), "error", err)...)
		sum.AddFailed(path, platform, err)
		w.metrics.IncFailed(platform)
		return true
	}

	body := strings.TrimLeft(res.Body, "\n")
	final := meta.Frontmatter(res.Meta) + body

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		sum.AddFailed(path, platform, err)
		w.metrics.IncFailed(platform)
		return true
	}
	// The full document is assembled before writing; no partial output.
	if err := os.WriteFile(outPath, []byte(final), 0o644); err != nil {
		sum.AddFailed(path, platform, err)
		w.metrics.IncFailed(platform)
		return true
	}

	if err := w.store.Record(ctx, path, platform, hash); err != nil {
		slog.Warn("Failed to record document state", append(observability.Attrs(ctx), "error", err)...)
	}

	analysis := markdown.Analyze([]byte(body))
	rel, relErr := filepath.Rel(w.cfg.Output, outPath)
	if relErr != nil {
		rel = outPath
	}
	sum.AddEmitted(manifest.Document{
		Path:     rel,
		Platform: platform,
		Title:    res.Meta.Title,
		Headings: len(analysis.Headings),
		Links:    len(analysis.Links),
	})
	w.metrics.IncEmitted(platform)
	slog.Debug("Document emitted", append(observability.Attrs(ctx), "output", outPath)...)
	return true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
