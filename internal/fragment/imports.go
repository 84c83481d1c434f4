package fragment

import (
	"path/filepath"
	"regexp"
	"strings"

	"git.home.luguber.info/inful/mdxflatten/internal/docmodel"
)

// ImportTable maps a local alias to the absolute path it was bound to.
type ImportTable map[string]string

var importRe = regexp.MustCompile(`(?m)^[ \t]*import\s+([a-zA-Z0-9_]+)\s+from\s+['"]([^'"]+)['"][ \t]*;?[ \t]*$`)

// BuildImportTable collects every import declaration in text.
//
// This is a full-text first pass: a selector may reference an alias whose
// import statement appears later in the file, so the table must be complete
// before any directive is resolved. Paths starting with "/" or "src/" are
// root-relative; anything else resolves against the importing file's
// directory.
func BuildImportTable(text, currentPath, root string) ImportTable {
	table := make(ImportTable)
	for _, m := range importRe.FindAllStringSubmatch(text, -1) {
		alias, src := m[1], m[2]
		switch {
		case strings.HasPrefix(src, "/"):
			table[alias] = filepath.Join(root, src)
		case strings.HasPrefix(src, "src/"):
			table[alias] = filepath.Join(root, src)
		default:
			table[alias] = filepath.Join(filepath.Dir(currentPath), src)
		}
	}
	return table
}

var importLineRe = regexp.MustCompile(`(?m)^[ \t]*import\s+[a-zA-Z0-9_]+\s+from\s+['"][^'"]+['"][ \t]*;?[ \t]*\n?`)

// RemoveImports strips import declaration lines from markup text.
//
// Import-like lines inside fenced code are sample code, not declarations,
// and stay untouched.
func RemoveImports(text string) string {
	return docmodel.MapMarkup(docmodel.Split(text), func(s string) string {
		return importLineRe.ReplaceAllString(s, "")
	})
}
