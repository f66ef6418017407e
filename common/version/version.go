// Package version exposes the build metadata stamped in at link time.
package version

// Overridden via -ldflags "-X flowchat/common/version.Version=..." and
// friends; the defaults mark an unstamped development build.
var (
	Version   = "v0.0.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info renders the three fields as one human-readable line.
func Info() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}
