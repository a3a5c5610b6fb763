package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildInfo(t *testing.T, info *debug.BuildInfo) {
	t.Helper()
	orig := readBuildInfo
	origVersion, origCommit, origTime := Version, GitCommit, BuildTime
	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	t.Cleanup(func() {
		readBuildInfo = orig
		Version, GitCommit, BuildTime = origVersion, origCommit, origTime
	})
}

func TestVersionFromLdflags(t *testing.T) {
	withBuildInfo(t, nil)
	Version = "v1.2.3"
	GitCommit = "0123456789abcdef"
	BuildTime = "2026-01-02T03:04:05Z"

	assert.Equal(t, "v1.2.3", GetVersion())
	assert.Equal(t, "0123456789abcdef", GetGitCommit())
	assert.Equal(t, "v1.2.3 (0123456)", GetShortVersion())

	info := GetBuildInfo()
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), info.BuildTime)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}

func TestVersionFromBuildSettings(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{
		Main: debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abcdef0123456789"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	assert.Equal(t, "dev-abcdef0", GetVersion())
	assert.Equal(t, "abcdef0123456789", GetGitCommit())
	assert.True(t, IsDirty())
}

func TestVersionFromModule(t *testing.T) {
	withBuildInfo(t, &debug.BuildInfo{Main: debug.Module{Version: "v0.4.0"}})

	assert.Equal(t, "v0.4.0", GetVersion())
	assert.Equal(t, "unknown", GetGitCommit())
	assert.Equal(t, "v0.4.0", GetShortVersion())
	assert.False(t, IsDirty())
}

func TestVersionWithoutBuildInfo(t *testing.T) {
	withBuildInfo(t, nil)

	assert.Equal(t, "dev", GetVersion())
	assert.Equal(t, "dev", GetShortVersion())
	assert.True(t, GetBuildInfo().BuildTime.IsZero())
}
