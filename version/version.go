package version

import "fmt"

// these are set via ldflags during the build
var (
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"
)

var FullVersion = fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
