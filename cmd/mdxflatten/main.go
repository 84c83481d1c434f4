package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/mdxflatten/internal/config"
	"git.home.luguber.info/inful/mdxflatten/internal/gitsource"
	"git.home.luguber.info/inful/mdxflatten/internal/meta"
	"git.home.luguber.info/inful/mdxflatten/internal/observability"
	"git.home.luguber.info/inful/mdxflatten/internal/pipeline"
	"git.home.luguber.info/inful/mdxflatten/internal/state"
	"git.home.luguber.info/inful/mdxflatten/internal/version"
	"git.home.luguber.info/inful/mdxflatten/internal/watch"
)

var CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"mdxflatten.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `help:"Print version and exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Build struct {
	} `cmd:"" help:"Flatten the configured document tree for every platform"`

	File struct {
		Path     string `arg:"" help:"Document to flatten"`
		Platform string `arg:"" help:"Platform to resolve for"`
	} `cmd:"" help:"Flatten a single document and write the .md sibling"`

	Watch struct {
	} `cmd:"" help:"Rebuild continuously as the source tree changes"`
}

func main() {
	kctx := kong.Parse(&CLI, kong.Vars{"version": version.String()})

	// Optional per-directory environment overrides.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	switch kctx.Command() {
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	case "build":
		err = runBuild()
	case "file <path> <platform>":
		err = runFile(CLI.File.Path, CLI.File.Platform)
	case "watch":
		err = runWatch()
	}
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func runInit(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(config.DefaultYAML), 0o644); err != nil {
		return err
	}
	slog.Info("Configuration file written", "path", path)
	return nil
}

func runBuild() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	store, metrics, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := gitsource.Sync(ctx, cfg.Source); err != nil {
		return err
	}

	return runOnce(ctx, cfg, store, metrics)
}

// runOnce executes one full build and logs its summary.
func runOnce(ctx context.Context, cfg *config.Config, store *state.Store, metrics *observability.Metrics) error {
	ctx = observability.WithRunID(ctx, uuid.NewString())

	pipe := pipeline.New(cfg.Source.Path, pipeline.WithMaxDepth(cfg.MaxDepth))
	walker := pipeline.NewWalker(cfg, pipe, store, metrics)

	man, sum, err := walker.Run(ctx)
	if err != nil {
		return err
	}
	sum.Log()
	slog.Info("Manifest written", "path", filepath.Join(cfg.Output, "manifest.yaml"), "run_id", man.RunID)
	return nil
}

func runFile(path, platform string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	located, err := locateDocument(fileConfig(), path, platform)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(located)
	if err != nil {
		return err
	}

	pipe := pipeline.New(probeRoot(abs))
	res, err := pipe.ResolveFile(ctx, abs, platform)
	if err != nil {
		return err
	}

	out := strings.TrimSuffix(abs, filepath.Ext(abs)) + ".md"
	final := meta.Frontmatter(res.Meta) + strings.TrimLeft(res.Body, "\n")
	if err := os.WriteFile(out, []byte(final), 0o644); err != nil {
		return err
	}
	slog.Info("Document flattened", "input", path, "platform", platform, "output", out)
	return nil
}

// fileConfig loads the configuration when present. Single-file mode works
// without one; load failures fall back to a defaulted config rooted at the
// current directory.
func fileConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err == nil {
		return cfg
	}
	c := &config.Config{Source: config.SourceConfig{Path: "."}}
	c.ApplyDefaults()
	return c
}

// locateDocument probes the places a document argument may point at: the
// path as given, under the output tree for the platform, and under the
// pages root.
func locateDocument(cfg *config.Config, path, platform string) (string, error) {
	candidates := []string{
		path,
		filepath.Join(cfg.Output, platform, path),
		filepath.Join(cfg.Source.Path, cfg.Source.Pages, path),
	}
	for _, cand := range candidates {
		if info, err := os.Stat(cand); err == nil && !info.IsDir() {
			return cand, nil
		}
	}
	return "", fmt.Errorf("document %s not found; tried %s", path, strings.Join(candidates, ", "))
}

// probeRoot walks up from the document looking for the workspace root, the
// directory root-absolute imports resolve against. The first ancestor
// holding a src/ directory wins; otherwise the document's own directory.
func probeRoot(docPath string) string {
	dir := filepath.Dir(docPath)
	for cur := dir; ; cur = filepath.Dir(cur) {
		if info, err := os.Stat(filepath.Join(cur, "src")); err == nil && info.IsDir() {
			return cur
		}
		if filepath.Dir(cur) == cur {
			return dir
		}
	}
}

func runWatch() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	store, metrics, cleanup, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := gitsource.Sync(ctx, cfg.Source); err != nil {
		return err
	}

	svc, err := watch.NewService(cfg, func(ctx context.Context) error {
		return runOnce(ctx, cfg, store, metrics)
	}, metrics)
	if err != nil {
		return err
	}

	err = svc.Run(ctx)
	if err == context.Canceled {
		slog.Info("Shutting down")
		return nil
	}
	return err
}

// buildDeps opens the optional incremental store and the metrics registry.
func buildDeps(cfg *config.Config) (*state.Store, *observability.Metrics, func(), error) {
	metrics := observability.NewMetrics(nil)

	if cfg.StatePath == "" {
		return nil, metrics, func() {}, nil
	}
	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close state store", "error", err)
		}
	}
	return store, metrics, cleanup, nil
}
