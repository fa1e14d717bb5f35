// Package version holds build metadata injected at link time.
package version

var (
	// Version is the semantic version of this build, e.g. "v0.3.1".
	// Overridden via -ldflags "-X github.com/aikobot/aiko/common/version.Version=...".
	Version = "dev"

	// GitCommit is the short commit hash the binary was built from.
	GitCommit = "unknown"

	// BuildTime is the UTC build timestamp in RFC 3339 format.
	BuildTime = "unknown"
)
