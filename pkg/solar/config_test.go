package solar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.UseMockData, "mock mode should be on out of the box")
	assert.Equal(t, 15*time.Minute, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, 0.36, cfg.EmissionsKgPerKwh)
	assert.Equal(t, 30, cfg.HistoryDays)
	assert.Equal(t, "/solar/overview", cfg.Endpoints.Overview)
	assert.Equal(t, "/solar/energy", cfg.Endpoints.Energy)
}

func TestLoadConfig(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("partial file merges over defaults", func(t *testing.T) {
		path := writeConfig(t, `
baseUrl: https://monitor.example.com
useMockData: false
endpoints:
  energy: /v2/energy
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "https://monitor.example.com", cfg.BaseURL)
		assert.False(t, cfg.UseMockData, "an explicit false must beat the true default")
		assert.Equal(t, "/v2/energy", cfg.Endpoints.Energy)
		assert.Equal(t, "/solar/overview", cfg.Endpoints.Overview, "absent nested keys keep their defaults")
		assert.Equal(t, 15*time.Minute, cfg.PollInterval(), "absent top-level keys keep their defaults")
		assert.Equal(t, 0.36, cfg.EmissionsKgPerKwh)
	})

	t.Run("out-of-range values fall back to defaults", func(t *testing.T) {
		path := writeConfig(t, `
pollIntervalMs: -5
requestTimeoutMs: 0
historyDays: -1
emissionsKgPerKwh: 0
`)
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("missing file returns defaults with an error", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, DefaultConfig(), cfg, "callers can keep running on defaults")
	})

	t.Run("unparseable file returns defaults with an error", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, "baseUrl: [unclosed"))
		require.Error(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})
}
