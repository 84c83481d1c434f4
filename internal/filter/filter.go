// Package filter resolves platform-conditional InlineFilter blocks.
//
// A block is included iff its platform list is empty (universal) or names
// the current platform. Blocks nest to arbitrary depth; matching is done
// over a lexed token stream with an explicit stack rather than regex
// substitution. Fenced code inside a kept block survives byte for byte;
// an excluded block drops its whole extent, fences included.
package filter

import (
	"log/slog"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
)

// Resolve flattens every InlineFilter directive in text down to the content
// relevant to platform.
//
// Malformed input never loops: an opening tag with no matching close is left
// in place as literal text, and stray closing tags are stripped. Resolution
// is idempotent for a given platform.
func Resolve(text, platform string) string {
	tokens := lex(text)
	if len(tokens) == 0 {
		return cleanup(text)
	}

	matchPairs(tokens, text)
	return cleanup(emit(text, tokens, platform))
}

// matchPairs links each close token to the innermost unclosed open.
// Opens left on the stack have no close anywhere after them.
func matchPairs(tokens []token, text string) {
	var stack []int
	for i := range tokens {
		switch tokens[i].kind {
		case tokenOpen:
			stack = append(stack, i)
		case tokenClose:
			if len(stack) == 0 {
				continue
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			tokens[open].matched = true
			tokens[open].pair = i
			tokens[i].matched = true
			tokens[i].pair = open
		}
	}
	for _, open := range stack {
		slog.Warn("Unterminated InlineFilter tag left as literal text",
			"offset", tokens[open].start,
			"platforms", tokens[open].platforms)
	}
}

// emit walks the token stream once, copying included spans and skipping
// excluded block extents wholesale.
func emit(text string, tokens []token, platform string) string {
	var b strings.Builder
	pos := 0
	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		b.WriteString(text[pos:t.start])

		switch {
		case t.kind == tokenOpen && t.matched:
			if includes(t.platforms, platform) {
				// Keep the body; nested tokens are handled as they come up.
				pos = t.end
			} else {
				pos = tokens[t.pair].end
				i = t.pair
			}
		case t.kind == tokenOpen:
			// Unterminated: leave the opening token as literal text.
			b.WriteString(text[t.start:t.end])
			pos = t.end
		default:
			// Matched close of an included block, or a stray close: strip.
			pos = t.end
		}
	}
	b.WriteString(text[pos:])
	return b.String()
}

// includes applies the inclusion rule: empty list means universal.
func includes(platforms []string, platform string) bool {
	if len(platforms) == 0 {
		return true
	}
	for _, p := range platforms {
		if p == platform {
			return true
		}
	}
	return false
}

var blankRunRe = regexp.MustCompile(`\n(?:[ \t]*\n){2,}`)

// cleanup collapses runs of 3+ newlines to exactly 2 in markup spans and
// trims surrounding whitespace. Verbatim segments are never touched.
func cleanup(text string) string {
	collapsed := docmodel.MapMarkup(docmodel.Split(text), func(s string) string {
		return blankRunRe.ReplaceAllString(s, "\n\n")
	})
	return strings.TrimSpace(collapsed)
}
