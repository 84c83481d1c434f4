// Package manifest records what a run produced.
//
// The manifest is written to the output root after a successful run and is
// the machine-readable counterpart of the end-of-run summary log.
package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Filename is the manifest's name inside the output root.
const Filename = "manifest.yaml"

// Document is one emitted document.
type Document struct {
	Path     string `yaml:"path"` // output path relative to the output root
	Platform string `yaml:"platform"`
	Title    string `yaml:"title,omitempty"`
	Headings int    `yaml:"headings"`
	Links    int    `yaml:"links"`
}

// Manifest describes one full run.
type Manifest struct {
	RunID       string     `yaml:"run_id"`
	GeneratedAt time.Time  `yaml:"generated_at"`
	Platforms   []string   `yaml:"platforms"`
	Emitted     int        `yaml:"emitted"`
	Skipped     int        `yaml:"skipped"`
	Failed      int        `yaml:"failed"`
	Documents   []Document `yaml:"documents"`
}

// New creates a manifest with a fresh run ID.
func New(platforms []string) *Manifest {
	return &Manifest{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Platforms:   platforms,
	}
}

// Add appends an emitted document entry.
func (m *Manifest) Add(doc Document) {
	m.Documents = append(m.Documents, doc)
	m.Emitted++
}

// Write serializes the manifest into dir.
//
// Documents are sorted by (platform, path) so repeated runs over the same
// input produce identical manifests.
func (m *Manifest) Write(dir string) error {
	sort.Slice(m.Documents, func(i, j int) bool {
		if m.Documents[i].Platform != m.Documents[j].Platform {
			return m.Documents[i].Platform < m.Documents[j].Platform
		}
		return m.Documents[i].Path < m.Documents[j].Path
	})

	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, Filename), data, 0o644)
}

// Read loads a manifest from dir.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, Filename))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
