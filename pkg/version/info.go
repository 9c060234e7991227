// Package version reports build metadata for recordlockd.
package version

import (
	"regexp"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	// Unknown marks metadata that was not stamped into the build.
	Unknown = "unknown"
	// DevelopmentVersion is the version of unstamped local builds.
	DevelopmentVersion = "dev"
)

// Stamped at link time, for example:
//
//	go build -ldflags="-X github.com/nimburion/recordlock/pkg/version.AppVersion=v1.2.3"
var (
	AppVersion = DevelopmentVersion
	GitCommit  = Unknown
	BuildTime  = Unknown
)

var releasePattern = regexp.MustCompile(`^v?(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)\.(0|[1-9][0-9]*)$`)

// Info is served on /version and printed by the version command.
type Info struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	// Release is true for a plain vMAJOR.MINOR.PATCH version.
	Release bool `json:"release"`
}

// Current returns the metadata of the running binary. Commit and build time
// fall back to the VCS stamp the go tool records when they were not set
// through ldflags.
func Current(service string) Info {
	info := Info{
		Service:   orDefault(service, Unknown),
		Version:   orDefault(AppVersion, DevelopmentVersion),
		Commit:    orDefault(GitCommit, Unknown),
		BuildTime: orDefault(BuildTime, Unknown),
		GoVersion: runtime.Version(),
	}
	if build, ok := debug.ReadBuildInfo(); ok {
		for _, s := range build.Settings {
			switch {
			case s.Key == "vcs.revision" && info.Commit == Unknown:
				info.Commit = s.Value
			case s.Key == "vcs.time" && info.BuildTime == Unknown:
				info.BuildTime = s.Value
			}
		}
	}
	info.Release = releasePattern.MatchString(info.Version)
	return info
}

func orDefault(v, fallback string) string {
	if v = strings.TrimSpace(v); v == "" {
		return fallback
	}
	return v
}
