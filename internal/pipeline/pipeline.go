// Package pipeline sequences the resolution passes and walks the document
// tree per platform.
//
// Per document the order is fixed: metadata extraction, conditional
// resolution, fragment resolution, normalization. Conditionals resolve
// before fragments so a selector wrapped in an excluded block never loads
// its target. Fragment resolution re-enters this same pipeline for every
// inlined file.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
	"git.home.luguber.info/inful/mdxflatten/internal/filter"
	"git.home.luguber.info/inful/mdxflatten/internal/fragment"
	"git.home.luguber.info/inful/mdxflatten/internal/meta"
	"git.home.luguber.info/inful/mdxflatten/internal/normalize"
	"git.home.luguber.info/inful/mdxflatten/internal/util/sets"
)

// Transform is an external markup hook (schema embedding, table conversion
// and the like plug in here). It receives markup text only; verbatim
// segments never pass through it.
type Transform func(markup string) string

// Describer captions media referenced from markup. Implementations are
// external collaborators; ok is false when no caption is available.
type Describer interface {
	Describe(ctx context.Context, mediaPath string) (text string, ok bool)
}

// Pipeline resolves documents against one workspace root.
type Pipeline struct {
	root       string
	maxDepth   int
	transforms []Transform
	describer  Describer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithTransforms appends markup transform hooks, applied in order after
// fragment resolution.
func WithTransforms(ts ...Transform) Option {
	return func(p *Pipeline) { p.transforms = append(p.transforms, ts...) }
}

// WithDescriber installs a media describer.
func WithDescriber(d Describer) Option {
	return func(p *Pipeline) { p.describer = d }
}

// WithMaxDepth caps fragment recursion depth.
func WithMaxDepth(n int) Option {
	return func(p *Pipeline) { p.maxDepth = n }
}

// New creates a pipeline rooted at the workspace directory root-relative
// imports resolve against.
func New(root string, opts ...Option) *Pipeline {
	p := &Pipeline{root: root, maxDepth: 32}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is one document resolved for one platform.
type Result struct {
	Meta meta.Meta
	Body string
}

// ResolveFile reads and resolves one document for platform.
func (p *Pipeline) ResolveFile(ctx context.Context, path, platform string) (Result, error) {
	doc, err := docmodel.ParseFile(path)
	if err != nil {
		return Result{}, err
	}
	return p.Resolve(ctx, doc, platform)
}

// Resolve runs the full pass sequence over doc for platform.
func (p *Pipeline) Resolve(ctx context.Context, doc *docmodel.Document, platform string) (Result, error) {
	g := guard{inFlight: sets.New(cleanPath(doc.Path()))}
	m, body, err := p.resolve(ctx, doc.Raw(), doc.Path(), platform, g)
	if err != nil {
		return Result{}, err
	}
	return Result{Meta: m, Body: normalize.Document(body)}, nil
}

// guard carries the recursion state of one resolution call chain. It is
// passed down by value; sibling fragment branches never share it.
type guard struct {
	inFlight sets.Set[string]
	depth    int
}

// resolve is the un-normalized pipeline core, shared by top-level documents
// and recursively-inlined fragments.
func (p *Pipeline) resolve(ctx context.Context, raw, path, platform string, g guard) (meta.Meta, string, error) {
	if err := ctx.Err(); err != nil {
		return meta.Meta{}, "", err
	}

	m, text := meta.Extract(raw)
	text = filter.Resolve(text, platform)

	imports := fragment.BuildImportTable(text, path, p.root)
	text = fragment.ReplaceDirectives(text, imports, platform, func(fragPath string) (string, bool) {
		return p.inlineFragment(ctx, fragPath, platform, g)
	})
	text = fragment.RemoveImports(text)

	for _, t := range p.transforms {
		text = docmodel.MapMarkup(docmodel.Split(text), t)
	}
	text = p.applyCaptions(ctx, text)

	return m, text, nil
}

// inlineFragment resolves one fragment file for substitution.
//
// Missing files, cycles and depth overruns all fail soft: the directive is
// replaced by empty text and the condition is logged.
func (p *Pipeline) inlineFragment(ctx context.Context, path, platform string, g guard) (string, bool) {
	key := cleanPath(path)
	if g.inFlight.Has(key) {
		slog.Warn("Fragment import cycle detected, substituting empty text",
			"path", path, "platform", platform)
		return "", false
	}
	if g.depth+1 >= p.maxDepth {
		slog.Warn("Fragment recursion depth exceeded, substituting empty text",
			"path", path, "platform", platform, "max_depth", p.maxDepth)
		return "", false
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Fragment file does not exist, substituting empty text", "path", path)
		} else {
			slog.Error("Failed to read fragment file", "path", path, "error", err)
		}
		return "", false
	}

	child := guard{inFlight: g.inFlight.Clone(), depth: g.depth + 1}
	child.inFlight.Add(key)

	_, text, err := p.resolve(ctx, string(content), path, platform, child)
	if err != nil {
		slog.Error("Fragment resolution failed, substituting empty text", "path", path, "error", err)
		return "", false
	}
	return text, true
}

// imageLineRe matches a line holding exactly one image reference.
var imageLineRe = regexp.MustCompile(`(?m)^!\[[^\]]*\]\(([^)\s]+)[^)]*\)[ \t]*$`)

// applyCaptions asks the describer for a caption for each standalone image
// line and inserts it as an italic paragraph below the image.
func (p *Pipeline) applyCaptions(ctx context.Context, text string) string {
	if p.describer == nil {
		return text
	}
	return docmodel.MapMarkup(docmodel.Split(text), func(s string) string {
		return imageLineRe.ReplaceAllStringFunc(s, func(line string) string {
			dest := imageLineRe.FindStringSubmatch(line)[1]
			caption, ok := p.describer.Describe(ctx, dest)
			if !ok || strings.TrimSpace(caption) == "" {
				return line
			}
			return line + "\n\n*" + strings.TrimSpace(caption) + "*"
		})
	})
}

func cleanPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
