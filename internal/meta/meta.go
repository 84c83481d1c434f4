// Package meta extracts the document metadata literal.
//
// Authored documents declare their title, description and platform
// applicability in a single `export const meta = {...};` statement. Only
// those three fields are recognized; this is targeted pattern matching, not
// a JavaScript object parser.
package meta

import (
	"regexp"
	"strings"
)

// Meta is the recognized subset of a document's metadata literal.
type Meta struct {
	Title       string
	Description string
	Platforms   []string
}

// IsZero reports whether no recognized field was present.
func (m Meta) IsZero() bool {
	return m.Title == "" && m.Description == "" && len(m.Platforms) == 0
}

var (
	metaRe  = regexp.MustCompile(`export\s+const\s+meta\s*=\s*\{[\s\S]*?\};`)
	titleRe = regexp.MustCompile(`["']?title["']?\s*:\s*["']([^"']*)["']`)
	// Descriptions may contain backslash-escaped quotes of the delimiter kind.
	descRe      = regexp.MustCompile(`["']?description["']?\s*:\s*(?:"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)')`)
	platformsRe = regexp.MustCompile(`["']?platforms["']?\s*:\s*\[([^\]]*)\]`)
	quotedRe    = regexp.MustCompile(`["']([^"']*)["']`)
)

var unescaper = strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`)

// Extract locates the metadata literal in text, pulls out the recognized
// fields and removes the whole statement.
//
// When no literal is present it returns an empty Meta and text unchanged.
func Extract(text string) (Meta, string) {
	loc := metaRe.FindStringIndex(text)
	if loc == nil {
		return Meta{}, text
	}

	literal := text[loc[0]:loc[1]]
	var m Meta

	if match := titleRe.FindStringSubmatch(literal); match != nil {
		m.Title = match[1]
	}
	if match := descRe.FindStringSubmatch(literal); match != nil {
		raw := match[1]
		if raw == "" && match[2] != "" {
			raw = match[2]
		}
		m.Description = unescaper.Replace(raw)
	}
	if match := platformsRe.FindStringSubmatch(literal); match != nil {
		m.Platforms = ExtractStringArray(match[1])
	}

	return m, text[:loc[0]] + text[loc[1]:]
}

// ExtractStringArray pulls quoted strings out of a bracketed-list body.
func ExtractStringArray(body string) []string {
	matches := quotedRe.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
