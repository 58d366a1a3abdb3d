package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "lumina://home", cfg.Browser.HomeURL)
	assert.Equal(t, 2000, cfg.Agent.RestartDelayMs)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LUMINA_PORT", "9000")
	t.Setenv("LUMINA_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// untouched fields keep defaults
	assert.Equal(t, 88, cfg.Browser.TopChromeHeight)
}

func TestYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("browser:\n  home_url: lumina://start\nagent:\n  restart_delay_ms: 500\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("LUMINA_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "lumina://start", cfg.Browser.HomeURL)
	assert.Equal(t, 500, cfg.Agent.RestartDelayMs)
}

func TestLoadOrDefaultBadFile(t *testing.T) {
	t.Setenv("LUMINA_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg := LoadOrDefault()
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}
