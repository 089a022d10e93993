package version_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/R0zhkov/wrf/internal/version"
)

func TestDefaultsAreSet(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, version.Version)
	assert.NotEmpty(t, version.Commit)
	assert.NotEmpty(t, version.BuildDate)
}

func TestString(t *testing.T) {
	origVersion, origCommit, origDate := version.Version, version.Commit, version.BuildDate
	t.Cleanup(func() {
		version.Version, version.Commit, version.BuildDate = origVersion, origCommit, origDate
	})

	version.Version = "v0.3.1"
	version.Commit = "a961617"
	version.BuildDate = "2025-03-08"

	assert.Equal(t, "v0.3.1 (commit: a961617, built: 2025-03-08)", version.String())
	assert.Equal(t, "wrf/v0.3.1", version.UserAgent())
}
