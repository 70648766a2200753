package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	def := DefaultAppConfig()
	assert.Equal(t, def.API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, []int{81, 91}, cfg.Notifications.CriticalScores)
	assert.Equal(t, "JWT", cfg.API.AuthScheme)
}

func TestLoadConfig_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: https://items.example.com
notifications:
  critical_scores: [75, 95]
  poll_interval_sec: 30
`), 0o600))
	t.Setenv("LOSTFOUND_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "https://items.example.com", cfg.API.BaseURL)
	assert.Equal(t, []int{75, 95}, cfg.Notifications.CriticalScores)
	assert.Equal(t, 30, cfg.Notifications.PollIntervalSec)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/auth/refresh", cfg.API.RefreshPath)
}

func TestLoadConfig_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  base_url: not a url
log:
  level: loud
`), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL")
	assert.Contains(t, err.Error(), "Level")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultAppConfig()
	cfg.User.Email = "me@example.com"
	cfg.Display.Theme = "mono"

	require.NoError(t, SaveConfig(path, cfg))

	got, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", got.User.Email)
	assert.Equal(t, "mono", got.Display.Theme)
}
