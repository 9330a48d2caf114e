package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStringDefaults(t *testing.T) {
	require.Equal(t, "loaderbuild unknown", String())
}

func TestStringWithBuildInfo(t *testing.T) {
	v, c, b := Version, GitCommit, BuildTime
	t.Cleanup(func() { Version, GitCommit, BuildTime = v, c, b })

	Version, GitCommit, BuildTime = "v0.3.0", "abc1234", "2026-10-01"
	require.Equal(t, "loaderbuild v0.3.0 (abc1234) built 2026-10-01", String())
}
