package config

// Build metadata injected at link time via -ldflags, for example:
//
//	go build -ldflags "-X carewatch/internal/config.version=1.2.3 \
//	    -X carewatch/internal/config.commit=$(git rev-parse --short HEAD) \
//	    -X carewatch/internal/config.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// The defaults apply during local development when ldflags are not set.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// NewBuildInfo constructs a BuildInfo from the linker-injected variables.
// Called once during initialization to populate the Config.Build field.
func NewBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	}
}
