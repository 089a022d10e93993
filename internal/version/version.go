// Package version reports the wrf build. Values are injected at build time:
//
//	go build -ldflags "-X github.com/R0zhkov/wrf/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	// Version is the semantic version.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "none"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String returns formatted version information.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// UserAgent identifies wrf in outgoing probe requests.
func UserAgent() string {
	return "wrf/" + Version
}
