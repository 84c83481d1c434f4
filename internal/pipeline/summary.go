package pipeline

import (
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/mdxflatten/internal/logfields"
	"git.home.luguber.info/inful/mdxflatten/internal/manifest"
	"git.home.luguber.info/inful/mdxflatten/internal/observability"
)

// Failure records one document whose resolution failed.
type Failure struct {
	Path     string
	Platform string
	Err      error
}

// Skip records one document excluded from output.
type Skip struct {
	Path     string
	Platform string
	Reason   observability.SkipReason
}

// Summary aggregates per-document outcomes across concurrent platform
// walks. All methods are safe for concurrent use.
type Summary struct {
	mu       sync.Mutex
	emitted  []manifest.Document
	skipped  []Skip
	failures []Failure
}

// AddEmitted records a successfully written document.
func (s *Summary) AddEmitted(doc manifest.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = append(s.emitted, doc)
}

// AddSkipped records a skipped document.
func (s *Summary) AddSkipped(path, platform string, reason observability.SkipReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, Skip{Path: path, Platform: platform, Reason: reason})
}

// AddFailed records a failed document.
func (s *Summary) AddFailed(path, platform string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, Failure{Path: path, Platform: platform, Err: err})
}

// Counts returns (emitted, skipped, failed).
func (s *Summary) Counts() (int, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emitted), len(s.skipped), len(s.failures)
}

// Emitted returns the emitted document entries.
func (s *Summary) Emitted() []manifest.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]manifest.Document(nil), s.emitted...)
}

// Failures returns the recorded failures.
func (s *Summary) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

// Log writes the end-of-run summary. Failed and skipped documents are
// listed individually; the run itself succeeded regardless.
func (s *Summary) Log() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slog.Info("Run complete",
		"emitted", len(s.emitted),
		"skipped", len(s.skipped),
		"failed", len(s.failures))

	for _, sk := range s.skipped {
		slog.Debug("Document skipped",
			logfields.Path(sk.Path), logfields.Platform(sk.Platform), logfields.Reason(string(sk.Reason)))
	}
	for _, f := range s.failures {
		slog.Warn("Document failed",
			logfields.Path(f.Path), logfields.Platform(f.Platform), logfields.Error(f.Err))
	}
}
