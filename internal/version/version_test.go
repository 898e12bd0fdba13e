package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

// withBuild swaps the ldflags values for the duration of a test.
func withBuild(t *testing.T, v, commit, date string) {
	t.Helper()
	orig := [3]string{Version, Commit, Date}
	t.Cleanup(func() { Version, Commit, Date = orig[0], orig[1], orig[2] })
	Version, Commit, Date = v, commit, date
}

func TestInfo(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "supportline dev")
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)

	withBuild(t, "0.3.1", "9f2c1e7d4b5a", "2026-10-01")
	info = Info()
	assert.Contains(t, info, "supportline 0.3.1")
	assert.Contains(t, info, "commit: 9f2c1e7,")
	assert.Contains(t, info, "built: 2026-10-01")
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{
		"9f2c1e7d4b5a": "9f2c1e7",
		"9f2c1e7":      "9f2c1e7",
		"abc":          "abc",
		"":             "",
	} {
		assert.Equal(t, want, short(in), in)
	}
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "supportline/dev", UserAgent())
	withBuild(t, "1.4.0", "unknown", "unknown")
	assert.Equal(t, "supportline/1.4.0", UserAgent())
}
