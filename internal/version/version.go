// Package version holds build metadata stamped in at link time.
package version

// Overridden via -ldflags on release builds.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
