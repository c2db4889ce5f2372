package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "layout_reader", cfg.Reader.BinPath)
	assert.Equal(t, 5*time.Second, cfg.Reader.Timeout())
	assert.Equal(t, 0, cfg.Reader.Workers)
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, "fatture-runs.db", cfg.Journal.Path)
	assert.Equal(t, "https://portale.bollettaetica.com", cfg.Portal.BaseURL)
	assert.InDelta(t, 2, cfg.Portal.RatePerSecond, 1e-9)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(`
reader:
  bin_path: /opt/reader/layout_reader
  timeout_secs: 10
portal:
  base_url: https://staging.example.com
log:
  level: debug
`), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/reader/layout_reader", cfg.Reader.BinPath)
	assert.Equal(t, 10*time.Second, cfg.Reader.Timeout())
	assert.Equal(t, "https://staging.example.com", cfg.Portal.BaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, "fatture-runs.db", cfg.Journal.Path)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("FATTURE_READER_TIMEOUT_SECS", "30")
	t.Setenv("FATTURE_LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Reader.Timeout())
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse log level")
}
