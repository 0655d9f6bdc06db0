package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigia/internal/domain"
)

func TestLoadSettings_MissingFileIsEmpty(t *testing.T) {
	t.Setenv("VIGIA_HOME", t.TempDir())

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Nil(t, settings.StaleThresholdMins)
	assert.Equal(t, domain.DefaultStaleThreshold, settings.StaleThreshold())
}

func TestLoadSettings_RoundTrip(t *testing.T) {
	t.Setenv("VIGIA_HOME", t.TempDir())

	mins := 45
	roots := 4
	debug := true
	require.NoError(t, SaveSettings(&Settings{
		Debug:              &debug,
		MaxActiveRoots:     &roots,
		StaleThresholdMins: &mins,
	}))

	settings, err := LoadSettings()
	require.NoError(t, err)
	require.NotNil(t, settings.Debug)
	assert.True(t, *settings.Debug)
	require.NotNil(t, settings.MaxActiveRoots)
	assert.Equal(t, 4, *settings.MaxActiveRoots)
	assert.Equal(t, 45*time.Minute, settings.StaleThreshold())
}

func TestLoadSettings_InvalidJSON(t *testing.T) {
	home := t.TempDir()
	t.Setenv("VIGIA_HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, "settings.json"), []byte("{nope"), 0644))

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestGetVigiaHome_EnvOverride(t *testing.T) {
	t.Setenv("VIGIA_HOME", "/tmp/custom-vigia")
	assert.Equal(t, "/tmp/custom-vigia", GetVigiaHome())
	assert.Equal(t, filepath.Join("/tmp/custom-vigia", "settings.json"), GetSettingsPath())
	assert.Equal(t, filepath.Join("/tmp/custom-vigia", "archive.db"), GetArchiveDBPath())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "x"), ExpandPath("~/x"))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
}
