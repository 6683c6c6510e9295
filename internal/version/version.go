package version

import (
	"fmt"
	"runtime"
)

// Set at build time with -ldflags "-X".
var (
	Version    = "dev"
	BuildTime  = "unknown"
	CommitHash = "unknown"
)

func GetVersion() string {
	return fmt.Sprintf("stakewatch %s", Version)
}

// UserAgent identifies stakewatch to the nodes it queries.
func UserAgent() string {
	return fmt.Sprintf("stakewatch/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

func GetFullVersion() string {
	return fmt.Sprintf(
		"stakewatch %s\nBuild Time: %s\nCommit: %s\nGo Version: %s\nOS/Arch: %s/%s",
		Version,
		BuildTime,
		CommitHash,
		runtime.Version(),
		runtime.GOOS,
		runtime.GOARCH,
	)
}
