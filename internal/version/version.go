package version

// Version contains the application version information.
// This should be set via build-time ldflags in production:
// go build -ldflags "-X git.home.luguber.info/inful/mdxflatten/internal/version.Version=v1.2.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the version with build metadata when present.
func String() string {
	s := Version
	if GitCommit != "unknown" {
		s += " (" + GitCommit + ")"
	}
	return s
}
