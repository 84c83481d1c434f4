// Package logfields holds the canonical log field names so key spelling
// never drifts between packages.
package logfields

import "log/slog"

const (
	KeyRunID      = "run_id"
	KeyDocument   = "document"
	KeyPlatform   = "platform"
	KeyStage      = "stage"
	KeyReason     = "reason"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyRepo       = "repo"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRunID, id) }
func Document(path string) slog.Attr  { return slog.String(KeyDocument, path) }
func Platform(p string) slog.Attr     { return slog.String(KeyPlatform, p) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr       { return slog.String(KeyOutput, p) }
func Repo(r string) slog.Attr         { return slog.String(KeyRepo, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
