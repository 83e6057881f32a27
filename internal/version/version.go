// Package version holds the build stamp shared by relayd and relaychat.
// Override with -ldflags "-X github.com/TAO-07/no-one-answer/internal/version.Version=v0.2.0".
package version

import "fmt"

var (
	Version = "v0.1.0"
	Commit  = "unknown"
	BuiltAt = "unknown"
)

// Info returns the bare version, as reported by GET /health.
func Info() string {
	return Version
}

// FullInfo returns version, commit and build time for the startup log line.
func FullInfo() string {
	return fmt.Sprintf("version=%s commit=%s built_at=%s", Version, Commit, BuiltAt)
}

// Banner names a binary with its version, e.g. "relaychat v0.1.0". The
// commit is appended when it was stamped.
func Banner(binary string) string {
	if Commit == "" || Commit == "unknown" {
		return binary + " " + Version
	}
	return fmt.Sprintf("%s %s (%s)", binary, Version, Commit)
}
