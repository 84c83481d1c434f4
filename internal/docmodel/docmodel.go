// Package docmodel models an authored document as an ordered sequence of
// verbatim (fenced code) and markup segments.
//
// The split is lossless: joining the segments in order reproduces the
// original text byte for byte. Every later pass operates on markup segments
// only and must never rewrite verbatim ones.
package docmodel

import (
	"os"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/errors"
)

// SegmentKind distinguishes transformable markup from protected code fences.
type SegmentKind string

const (
	KindMarkup   SegmentKind = "markup"
	KindVerbatim SegmentKind = "verbatim"
)

// Segment is one contiguous span of the document.
type Segment struct {
	Text string
	Kind SegmentKind
}

// Document is a source file plus its derived segment sequence.
//
// It is immutable once parsed; resolution passes produce new text rather
// than mutating the document.
type Document struct {
	path     string
	raw      string
	segments []Segment
}

// Parse segments raw content. Segmentation itself cannot fail.
func Parse(path string, content []byte) *Document {
	raw := string(content)
	return &Document{
		path:     path,
		raw:      raw,
		segments: Split(raw),
	}
}

// ParseFile reads and segments a file from disk.
func ParseFile(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryFileSystem, "failed to read document").
			WithContext("path", path).
			Build()
	}
	return Parse(path, content), nil
}

// Path returns the source path the document was read from.
func (d *Document) Path() string { return d.path }

// Raw returns the original text.
func (d *Document) Raw() string { return d.raw }

// Segments returns the ordered segment sequence.
func (d *Document) Segments() []Segment { return d.segments }

// Split partitions text into alternating markup and verbatim segments.
//
// A verbatim segment runs from a line-starting triple-backtick marker
// (optionally followed by a language tag) through the line holding the next
// triple-backtick marker, fences included. Fences do not nest. An
// unterminated fence extends to end of input.
func Split(text string) []Segment {
	if text == "" {
		return nil
	}

	var segs []Segment
	var cur strings.Builder
	inFence := false

	flush := func(kind SegmentKind) {
		if cur.Len() > 0 {
			segs = append(segs, Segment{Text: cur.String(), Kind: kind})
			cur.Reset()
		}
	}

	for _, line := range splitAfterNewlines(text) {
		if isFenceMarker(line) {
			if !inFence {
				flush(KindMarkup)
				inFence = true
				cur.WriteString(line)
			} else {
				cur.WriteString(line)
				flush(KindVerbatim)
				inFence = false
			}
			continue
		}
		cur.WriteString(line)
	}

	if inFence {
		flush(KindVerbatim)
	} else {
		flush(KindMarkup)
	}
	return segs
}

// Join concatenates segment texts in order.
func Join(segs []Segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteString(s.Text)
	}
	return b.String()
}

// MapMarkup applies fn to each markup segment's text, leaving verbatim
// segments untouched, and returns the joined result.
func MapMarkup(segs []Segment, fn func(string) string) string {
	var b strings.Builder
	for _, s := range segs {
		if s.Kind == KindMarkup {
			b.WriteString(fn(s.Text))
		} else {
			b.WriteString(s.Text)
		}
	}
	return b.String()
}

// splitAfterNewlines splits text into lines, each retaining its trailing
// newline. The final element may lack one.
func splitAfterNewlines(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// isFenceMarker reports whether line opens or closes a code fence.
func isFenceMarker(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), "```")
}
