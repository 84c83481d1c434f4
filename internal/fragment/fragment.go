// Package fragment inlines externally-stored reusable content.
//
// A Fragments directive carries a platform→alias mapping; at resolution
// time the directive is replaced by the recursively-resolved content of the
// file the current platform's alias is bound to, or by empty text when no
// entry matches. The recursive re-run of the full pipeline is injected by
// the caller so this package stays free of orchestration concerns.
package fragment

import (
	"log/slog"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
	"git.home.luguber.info/inful/mdxflatten/internal/normalize"
)

// InlineFunc resolves one fragment file through the full pipeline and
// returns its flattened content. ok is false when the fragment must be
// omitted (missing file, cycle, read failure).
type InlineFunc func(path string) (content string, ok bool)

var (
	directiveRe = regexp.MustCompile(`<Fragments\s+fragments\s*=\s*(\{[\s\S]*?\})\s*/>[ \t]*\n?`)
	mappingRe   = regexp.MustCompile(`['"]?([\w-]+)['"]?\s*:\s*(\w+)`)
)

// Selector is the parsed platform→alias mapping of one directive.
type Selector map[string]string

// ParseSelector extracts the platform→alias pairs from a directive's
// mapping literal, tolerant of quoting style and whitespace.
func ParseSelector(literal string) Selector {
	sel := make(Selector)
	for _, m := range mappingRe.FindAllStringSubmatch(literal, -1) {
		sel[m[1]] = m[2]
	}
	return sel
}

// ReplaceDirectives substitutes every Fragments directive in markup text.
//
// For each directive: look up the current platform in its selector, map the
// alias through imports, and inline the target via inline. Missing entries
// and missing files substitute empty text; that is silent omission, not an
// error. Fenced code is never scanned for directives.
func ReplaceDirectives(text string, imports ImportTable, platform string, inline InlineFunc) string {
	return docmodel.MapMarkup(docmodel.Split(text), func(s string) string {
		return directiveRe.ReplaceAllStringFunc(s, func(match string) string {
			literal := directiveRe.FindStringSubmatch(match)[1]
			sel := ParseSelector(literal)

			alias, ok := sel[platform]
			if !ok {
				return ""
			}
			path, ok := imports[alias]
			if !ok {
				slog.Debug("Fragment alias has no import declaration", "alias", alias, "platform", platform)
				return ""
			}

			content, ok := inline(path)
			if !ok {
				return ""
			}
			content = strings.TrimSpace(content)
			content = docmodel.MapMarkup(docmodel.Split(content), normalize.HeadingSpacing)
			if content == "" {
				return ""
			}
			// Inserted content is separated from its surroundings by one
			// blank line on each side; the host-level blank-run collapse
			// later reduces any excess.
			return "\n\n" + content + "\n\n"
		})
	})
}
