/*
Package version provides version information for genloop.

Version values are set via ldflags during build:

	-X github.com/khanglvm/genloop/internal/version.Version=v0.3.0
	-X github.com/khanglvm/genloop/internal/version.Commit=abc1234
	-X github.com/khanglvm/genloop/internal/version.Date=2026-01-31

Builds without ldflags fall back to the module build info embedded by
`go install`, and finally to "dev".
*/
package version

import "runtime/debug"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info is the resolved build identity.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Get resolves version information, consulting build info for dev builds.
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Date: Date}
	if info.Version != "dev" {
		return info
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	return fromBuildInfo(info, bi)
}

func fromBuildInfo(info Info, bi *debug.BuildInfo) Info {
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		info.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "none" && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.Date == "unknown" && len(s.Value) >= 10 {
				info.Date = s.Value[:10]
			}
		}
	}
	return info
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}

// String formats the info for display.
func (i Info) String() string {
	if i.Version == "dev" {
		return i.Version + " (development build)"
	}
	return i.Version + " (commit: " + i.Commit + ", built: " + i.Date + ")"
}

// GetVersion returns version information as a formatted string.
func GetVersion() string {
	return Get().String()
}

// GetVersionComponents returns individual version components.
func GetVersionComponents() (version, commit, date string) {
	i := Get()
	return i.Version, i.Commit, i.Date
}
