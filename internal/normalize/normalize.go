// Package normalize applies final whitespace rules to flattened output.
//
// All rules respect the verbatim partition: fenced code is reassembled
// untouched, except for the single trailing newline guaranteed at the very
// end of the document.
package normalize

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
)

var (
	blankRunRe      = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)
	headingRe       = regexp.MustCompile(`^#{1,6} `)
	trailingSpaceRe = regexp.MustCompile(`[ \t]+\n`)
)

// Document applies the full normalization pass: blank-run collapse, heading
// spacing, trailing-whitespace trim, no leading blank lines, and exactly one
// final newline.
func Document(text string) string {
	out := docmodel.MapMarkup(docmodel.Split(text), func(s string) string {
		s = trailingSpaceRe.ReplaceAllString(s, "\n")
		s = HeadingSpacing(s)
		return blankRunRe.ReplaceAllString(s, "\n\n")
	})
	out = strings.TrimRight(out, " \t\n") + "\n"
	return strings.TrimLeft(out, "\n")
}

// CollapseBlankRuns reduces runs of 3+ newlines to exactly 2 in markup.
func CollapseBlankRuns(text string) string {
	return docmodel.MapMarkup(docmodel.Split(text), func(s string) string {
		return blankRunRe.ReplaceAllString(s, "\n\n")
	})
}

// HeadingSpacing ensures a blank line separates heading lines (1-6 leading
// '#' characters) from adjacent non-blank content.
func HeadingSpacing(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	for i, line := range lines {
		isHeading := headingRe.MatchString(line)
		if isHeading && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
			out = append(out, "")
		}
		out = append(out, line)
		if isHeading && i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}
