// Package version holds the build-time version variables for the infraaudit binary.
// GoReleaser injects the real values via -ldflags at release time; local
// builds report "dev".
package version

import "fmt"

// These variables are overridden by GoReleaser ldflags at release time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// BuildInfo is the version triple exposed by the health endpoint.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get returns the build information of the running binary.
func Get() BuildInfo {
	return BuildInfo{Version: Version, Commit: Commit, Date: Date}
}

// String formats b the way `infraaudit version` prints it.
func (b BuildInfo) String() string {
	return fmt.Sprintf("infraaudit version %s\ncommit: %s\nbuilt: %s\n", b.Version, b.Commit, b.Date)
}

// Info returns the formatted version string of the running binary.
func Info() string {
	return Get().String()
}
