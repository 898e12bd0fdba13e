package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "bridge", []string{"bridge"}, false},
		{"two segments", "bridge.url", []string{"bridge", "url"}, false},
		{"three segments", "failover.backoff.maxMs", []string{"failover", "backoff", "maxMs"}, false},
		{"empty", "", nil, true},
		{"empty segment", "bridge..url", nil, true},
		{"trailing dot", "bridge.", nil, true},
		{"blocked __proto__", "foo.__proto__.bar", nil, true},
		{"blocked constructor", "constructor", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueAtPath_RoundTrip(t *testing.T) {
	root := map[string]any{
		"failover": map[string]any{"maxAttempts": 3},
		"simple":   "value",
	}

	v, ok := GetValueAtPath(root, []string{"failover", "maxAttempts"})
	require.True(t, ok)
	assert.Equal(t, 3, v)

	_, ok = GetValueAtPath(root, []string{"simple", "nested"})
	assert.False(t, ok)

	SetValueAtPath(root, []string{"deepLink", "phone"}, "+1 555 0100")
	v, ok = GetValueAtPath(root, []string{"deepLink", "phone"})
	require.True(t, ok)
	assert.Equal(t, "+1 555 0100", v)

	SetValueAtPath(root, []string{"simple", "nested"}, true)
	v, _ = GetValueAtPath(root, []string{"simple", "nested"})
	assert.Equal(t, true, v)

	assert.True(t, UnsetValueAtPath(root, []string{"failover", "maxAttempts"}))
	assert.False(t, UnsetValueAtPath(root, []string{"failover", "maxAttempts"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "key"}))
	_, ok = root["failover"]
	assert.True(t, ok, "parent map is kept")
}

func TestIsSecretPath(t *testing.T) {
	assert.True(t, IsSecretPath([]string{"profile", "token"}))
	assert.True(t, IsSecretPath([]string{"secondary", "apiKey"}))
	assert.False(t, IsSecretPath([]string{"bridge", "url"}))
	assert.False(t, IsSecretPath(nil))
}

func TestResolvePaths_Default(t *testing.T) {
	t.Setenv("SUPPORTLINE_HOME", "")

	paths, err := ResolvePaths()
	require.NoError(t, err)

	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".supportline")
	assert.Equal(t, base, paths.Base)
	assert.Equal(t, filepath.Join(base, "config.yaml"), paths.Config)
	assert.Equal(t, filepath.Join(base, "data"), paths.Data)
	assert.Equal(t, filepath.Join(base, "logs"), paths.Logs)
	assert.Equal(t, filepath.Join(base, "data", "supportline.db"), paths.Database)
}

func TestResolvePaths_CustomHome(t *testing.T) {
	t.Setenv("SUPPORTLINE_HOME", "/tmp/sl")

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sl", paths.Base)
	assert.Equal(t, "/tmp/sl/config.yaml", paths.Config)
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	paths := Paths{
		Base: tmp,
		Data: filepath.Join(tmp, "data"),
		Logs: filepath.Join(tmp, "logs"),
	}

	require.NoError(t, paths.EnsureDirs())
	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.Base, paths.Data, paths.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
