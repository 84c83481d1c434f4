package filter

import (
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
)

type tokenKind int

const (
	tokenOpen tokenKind = iota
	tokenClose
)

// token is one InlineFilter directive occurrence in the source text.
//
// start/end are byte offsets into the full text; pair links matched
// open/close tokens after the matching pass.
type token struct {
	kind      tokenKind
	start     int
	end       int
	platforms []string
	matched   bool
	pair      int
}

const (
	openMarker  = "<inlinefilter"
	closeMarker = "</inlinefilter"
)

var platformListRe = regexp.MustCompile(`["']([a-zA-Z0-9-]+)["']`)

// lex scans text for InlineFilter open and close tags, case-insensitively.
//
// Tags are only recognized inside markup segments; fenced code is opaque.
func lex(text string) []token {
	lower := strings.ToLower(text)
	var tokens []token

	offset := 0
	for _, seg := range docmodel.Split(text) {
		if seg.Kind == docmodel.KindMarkup {
			tokens = lexRegion(lower, offset, offset+len(seg.Text), tokens)
		}
		offset += len(seg.Text)
	}
	return tokens
}

// lexRegion scans lower[start:end] for directive tokens and appends them.
func lexRegion(lower string, start, end int, tokens []token) []token {
	i := start
	for i < end {
		nextClose := indexWithin(lower, closeMarker, i, end)
		nextOpen := indexWithin(lower, openMarker, i, end)

		switch {
		case nextClose >= 0 && (nextOpen < 0 || nextClose < nextOpen):
			tok, next, ok := lexClose(lower, nextClose, end)
			if !ok {
				i = nextClose + 1
				continue
			}
			tokens = append(tokens, tok)
			i = next
		case nextOpen >= 0:
			tok, next, ok := lexOpen(lower, nextOpen, end)
			if !ok {
				i = nextOpen + 1
				continue
			}
			tokens = append(tokens, tok)
			i = next
		default:
			return tokens
		}
	}
	return tokens
}

// lexOpen parses an opening tag at pos. The attribute region is scanned
// quote-aware so '>' inside quoted values never terminates the tag.
func lexOpen(lower string, pos, end int) (token, int, bool) {
	attrStart := pos + len(openMarker)
	if attrStart < end && !isTagBoundary(lower[attrStart]) {
		return token{}, 0, false
	}

	inQuote := byte(0)
	for i := attrStart; i < end; i++ {
		c := lower[i]
		switch {
		case inQuote != 0:
			if c == inQuote && lower[i-1] != '\\' {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '>':
			attrs := lower[attrStart:i]
			return token{
				kind:      tokenOpen,
				start:     pos,
				end:       i + 1,
				platforms: parsePlatformList(attrs),
			}, i + 1, true
		}
	}
	// No terminating '>' in this region: not a tag.
	return token{}, 0, false
}

// lexClose parses a closing tag at pos, tolerating whitespace before '>'.
func lexClose(lower string, pos, end int) (token, int, bool) {
	i := pos + len(closeMarker)
	for i < end && (lower[i] == ' ' || lower[i] == '\t' || lower[i] == '\n') {
		i++
	}
	if i >= end || lower[i] != '>' {
		return token{}, 0, false
	}
	return token{kind: tokenClose, start: pos, end: i + 1}, i + 1, true
}

// parsePlatformList extracts quoted platform identifiers from the tag's
// attribute region. Absent or empty list means the block is universal.
func parsePlatformList(attrs string) []string {
	matches := platformListRe.FindAllStringSubmatch(attrs, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func isTagBoundary(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '>' || c == '/'
}

// indexWithin finds needle in s[from:limit], returning an absolute offset.
func indexWithin(s, needle string, from, limit int) int {
	if from >= limit {
		return -1
	}
	idx := strings.Index(s[from:limit], needle)
	if idx < 0 {
		return -1
	}
	return from + idx
}
