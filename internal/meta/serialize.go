package meta

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatterFields is the emitted subset: platform applicability is a
// build-time concern and does not survive into flattened output.
type frontmatterFields struct {
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Frontmatter renders meta as a YAML front-matter block, ending with a
// blank line so the body can be appended directly.
//
// Empty meta renders as the empty string.
func Frontmatter(m Meta) string {
	if m.Title == "" && m.Description == "" {
		return ""
	}

	out, err := yaml.Marshal(frontmatterFields{Title: m.Title, Description: m.Description})
	if err != nil {
		// Marshaling two plain strings cannot fail; keep the document rather
		// than dropping it if it somehow does.
		return ""
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(out)
	b.WriteString("---\n\n")
	return b.String()
}
