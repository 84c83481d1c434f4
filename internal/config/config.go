// Package config loads and validates the flattener configuration.
//
// Loading is staged: decode YAML, apply defaults, validate. Validation
// failures are configuration-category classified errors so the CLI can
// render them without a stack trace.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/mdxflatten/internal/errors"
	"git.home.luguber.info/inful/mdxflatten/internal/util/sets"
)

// KnownPlatforms is the closed set of platform identifiers a document's
// content may be conditioned on.
var KnownPlatforms = []string{
	"angular",
	"javascript",
	"nextjs",
	"react",
	"react-native",
	"vue",
	"android",
	"swift",
	"flutter",
}

// Config is the top-level configuration.
type Config struct {
	Source      SourceConfig `yaml:"source"`
	Output      string       `yaml:"output"`
	Platforms   []string     `yaml:"platforms,omitempty"` // empty means all known platforms
	Placeholder string       `yaml:"placeholder_segment,omitempty"`
	SkipDirs    []string     `yaml:"skip_dirs,omitempty"`
	IndexFile   string       `yaml:"index_file,omitempty"`
	RequireMeta *bool        `yaml:"require_meta,omitempty"`
	StatePath   string       `yaml:"state_path,omitempty"` // empty disables the incremental store
	MaxDepth    int          `yaml:"max_fragment_depth,omitempty"`
	Watch       WatchConfig  `yaml:"watch,omitempty"`
}

// SourceConfig locates the authored document tree.
//
// Either Path points at an existing workspace, or Repo names a git remote
// that is cloned/updated into Path before building.
type SourceConfig struct {
	Path   string      `yaml:"path"`
	Repo   string      `yaml:"repo,omitempty"`
	Branch string      `yaml:"branch,omitempty"`
	Pages  string      `yaml:"pages,omitempty"` // pages root relative to Path
	Retry  RetryConfig `yaml:"retry,omitempty"`
}

// RetryBackoffMode selects how the delay between git transfer retries grows.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// RetryConfig tunes transient-failure handling for git transfers. Zero
// values fall back to the retry package defaults.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode,omitempty"`
	Initial    time.Duration    `yaml:"initial,omitempty"`
	Max        time.Duration    `yaml:"max,omitempty"`
	MaxRetries int              `yaml:"max_retries,omitempty"`
}

// WatchConfig controls the watch command.
type WatchConfig struct {
	Debounce        time.Duration `yaml:"debounce,omitempty"`
	RebuildInterval time.Duration `yaml:"rebuild_interval,omitempty"`
	MetricsAddr     string        `yaml:"metrics_addr,omitempty"`
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfiguration, "failed to read configuration").
			WithContext("path", path).
			Build()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryConfiguration, "failed to parse configuration").
			WithContext("path", path).
			Build()
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Output == "" {
		c.Output = "llms-docs"
	}
	if len(c.Platforms) == 0 {
		c.Platforms = append([]string(nil), KnownPlatforms...)
	}
	if c.Placeholder == "" {
		c.Placeholder = "[platform]"
	}
	if c.SkipDirs == nil {
		c.SkipDirs = []string{"gen1", "[category]"}
	}
	if c.IndexFile == "" {
		c.IndexFile = "index.mdx"
	}
	if c.RequireMeta == nil {
		v := true
		c.RequireMeta = &v
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = 32
	}
	if c.Source.Pages == "" {
		c.Source.Pages = "src/pages/" + c.Placeholder
	}
	if c.Watch.Debounce == 0 {
		c.Watch.Debounce = 2 * time.Second
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Source.Path == "" {
		return errors.New(errors.CategoryConfiguration, "source.path is required").Build()
	}

	known := sets.New(KnownPlatforms...)
	for _, p := range c.Platforms {
		if !known.Has(p) {
			return errors.New(errors.CategoryConfiguration, "unknown platform").
				WithContext("platform", p).
				WithContext("known", fmt.Sprintf("%v", KnownPlatforms)).
				Build()
		}
	}

	if c.MaxDepth < 1 {
		return errors.New(errors.CategoryConfiguration, "max_fragment_depth must be positive").Build()
	}
	return nil
}

// MetaRequired reports whether documents without a metadata literal are
// excluded from output.
func (c *Config) MetaRequired() bool {
	return c.RequireMeta == nil || *c.RequireMeta
}

// DefaultYAML is the configuration template written by the init command.
const DefaultYAML = `# mdxflatten configuration
source:
  path: .
  # repo: https://example.com/docs.git
  # branch: main
  pages: src/pages/[platform]
  # retry:
  #   mode: linear
  #   initial: 1s
  #   max: 30s
  #   max_retries: 2

output: llms-docs

# platforms defaults to every known platform; narrow it here.
# platforms:
#   - react
#   - flutter

# state_path: .mdxflatten.db

watch:
  debounce: 2s
  # rebuild_interval: 30m
  # metrics_addr: :9180
`
