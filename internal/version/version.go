// Package version holds build information for unitymcp.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
// go build -ldflags "-X unitymcp/internal/version.Version=0.3.0 -X unitymcp/internal/version.Commit=abc123"
var (
	Version   = "0.3.0"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Revision returns the commit, falling back to the VCS stamp the Go
// toolchain embeds when ldflags did not set one.
func Revision() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	info, ok := readBuildInfo()
	if !ok {
		return Commit
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			return s.Value
		}
	}
	return Commit
}

// Info returns the version with a short commit suffix when known.
func Info() string {
	if rev := Revision(); rev != "unknown" && len(rev) > 7 {
		return Version + " (" + rev[:7] + ")"
	}
	return Version
}

// Full returns the multi-line output of `unitymcp version`.
func Full() string {
	return fmt.Sprintf("unitymcp version %s\nCommit: %s\nBuilt: %s\nGo: %s %s/%s",
		Version, Revision(), BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
