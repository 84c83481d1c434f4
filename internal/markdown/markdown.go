// Package markdown analyzes flattened output with a Goldmark AST walk.
//
// It is analysis only: the flattener never re-renders markdown, it just
// reports on what it emitted (headings and link destinations feed the run
// manifest).
package markdown

import (
	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one heading found in a document body.
type Heading struct {
	Level int
	Text  string
}

// LinkKind classifies a link-like construct.
type LinkKind string

const (
	LinkKindInline LinkKind = "inline"
	LinkKindImage  LinkKind = "image"
	LinkKindAuto   LinkKind = "auto"
)

// Link is one link-like construct found in a document body.
type Link struct {
	Kind        LinkKind
	Destination string
}

// Analysis is the result of scanning one flattened document.
type Analysis struct {
	Headings []Heading
	Links    []Link
}

// Analyze parses body and extracts headings and links.
func Analyze(body []byte) Analysis {
	md := goldmark.New()
	root := md.Parser().Parse(text.NewReader(body))

	var out Analysis
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *gmast.Heading:
			out.Headings = append(out.Headings, Heading{
				Level: node.Level,
				Text:  string(headingText(node, body)),
			})
		case *gmast.AutoLink:
			out.Links = append(out.Links, Link{Kind: LinkKindAuto, Destination: string(node.URL(body))})
		case *gmast.Image:
			out.Links = append(out.Links, Link{Kind: LinkKindImage, Destination: string(node.Destination)})
		case *gmast.Link:
			out.Links = append(out.Links, Link{Kind: LinkKindInline, Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})
	return out
}

// headingText collects the raw text of a heading's inline children.
func headingText(h *gmast.Heading, body []byte) []byte {
	var out []byte
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			out = append(out, t.Segment.Value(body)...)
		}
	}
	return out
}
