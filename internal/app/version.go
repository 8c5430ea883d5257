// Package app holds the bootstrap shared by the driving hours binaries.
package app

import "fmt"

// Version, Commit and BuildTime are set via ldflags at build time, e.g.
// -ldflags "-X example.com/drivinghours/internal/app.Version=1.2.0".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// BuildVersion returns a formatted version string for startup logs and --version.
func BuildVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)
}
