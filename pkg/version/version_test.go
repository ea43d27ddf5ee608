package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	if Version == "dev" {
		t.Log("Version is 'dev' (development build without ldflags)")
		return
	}
	semverRegex := regexp.MustCompile(`^\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semverRegex.MatchString(Version), "Version should follow semver format, got: %s", Version)
}

func TestString_ReturnsFormattedString(t *testing.T) {
	str := String()

	assert.True(t, strings.HasPrefix(str, "vaultindex "+Version), str)
	assert.Contains(t, str, "commit:")
	assert.Contains(t, str, "go: "+runtime.Version())
}

func TestShort_ReturnsVersion(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestUserAgent(t *testing.T) {
	ua := UserAgent()

	assert.Equal(t, "vaultindex/"+Version+" ("+runtime.GOOS+"/"+runtime.GOARCH+")", ua)
}

func TestGetInfo_ReturnsInfo(t *testing.T) {
	// Given: ldflags-injected values
	oldCommit, oldDate := Commit, Date
	Commit, Date = "abc1234", "2026-01-02T03:04:05Z"
	t.Cleanup(func() { Commit, Date = oldCommit, oldDate })

	// When: reading build info
	info := GetInfo()

	// Then: injected values win over the toolchain stamp
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, "abc1234", info.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", info.Date)
	assert.Equal(t, runtime.Version(), info.GoVersion)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}

func TestGetInfo_IsJSONSerializable(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))

	for _, key := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, key)
	}
}
