// Package buildinfo carries the build identity injected at link time.
package buildinfo

import "fmt"

// Populated via -ldflags "-X github.com/formlio/forml/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the full build identity.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
