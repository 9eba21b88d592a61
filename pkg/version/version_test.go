package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

//nolint:paralleltest // mutates package-level build metadata.
func TestApplyBuildInfo(t *testing.T) {
	savedVersion, savedCommit, savedDate := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = savedVersion, savedCommit, savedDate })

	Version, Commit, Date = "dev", unknown, unknown

	applyBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v0.3.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "v0.3.1", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
}

//nolint:paralleltest // mutates package-level build metadata.
func TestApplyBuildInfo_KeepsLinkerValues(t *testing.T) {
	savedVersion, savedCommit, savedDate := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = savedVersion, savedCommit, savedDate })

	Version, Commit, Date = "v1.0.0", "deadbeef", unknown

	applyBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "abc123"}},
	})

	assert.Equal(t, "v1.0.0", Version)
	assert.Equal(t, "deadbeef", Commit)
	assert.Equal(t, unknown, Date)
}
