package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	assert.Equal(t, "dev (development build)", Info{Version: "dev"}.String())
	assert.Equal(t, "v0.3.0 (commit: abc1234, built: 2026-01-31)",
		Info{Version: "v0.3.0", Commit: "abc1234", Date: "2026-01-31"}.String())
}

func TestFromBuildInfo(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef"},
			{Key: "vcs.time", Value: "2026-02-03T10:00:00Z"},
		},
	}
	got := fromBuildInfo(Info{Version: "dev", Commit: "none", Date: "unknown"}, bi)
	assert.Equal(t, Info{Version: "v0.3.1", Commit: "0123456", Date: "2026-02-03"}, got)
}

func TestFromBuildInfo_DevelKeepsDev(t *testing.T) {
	bi := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	got := fromBuildInfo(Info{Version: "dev", Commit: "none", Date: "unknown"}, bi)
	assert.Equal(t, "dev", got.Version)
	assert.Equal(t, "none", got.Commit)
}

func TestGet_LdflagsWin(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v1.2.3"

	assert.Equal(t, "v1.2.3", Get().Version)
}
