package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"USMS_LOG_LEVEL", "USMS_BRIDGE_URL", "USMS_USERNAME", "USMS_PASSWORD", "USMS_COLLECTOR_HOST"} {
		t.Setenv(k, "")
	}
	t.Setenv("USMS_DATA_DIR", t.TempDir())
}

func TestLoadCollectorConfigWritesDefault(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "collector.toml")

	cfg, err := LoadCollectorConfigFrom(path)
	require.NoError(t, err)

	assert.FileExists(t, path)
	assert.Equal(t, DefaultScanIntervalSeconds, cfg.ScanIntervalSeconds)
	assert.Equal(t, time.Hour, cfg.ScanInterval())
	assert.True(t, cfg.BackfillOnColdStart)
	assert.Empty(t, cfg.Accounts)

	again, err := LoadCollectorConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadCollectorConfigClampsInterval(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "collector.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan_interval_seconds = 60
log_level = "debug"

[[accounts]]
username = "alice"
password = "secret"

[[accounts]]
username = "Alice"
password = "other"

[[accounts]]
username = "bob"
`), 0644))

	cfg, err := LoadCollectorConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, MinScanIntervalSeconds, cfg.ScanIntervalSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, AccountConfig{Username: "alice", Password: "secret"}, cfg.Accounts[0])
	assert.NotEmpty(t, cfg.DatabasePath)
}

func TestLoadCollectorConfigEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("USMS_USERNAME", "carol")
	t.Setenv("USMS_PASSWORD", "pw")
	t.Setenv("USMS_LOG_LEVEL", "warn")
	t.Setenv("USMS_BRIDGE_URL", "http://bridge:1234")
	path := filepath.Join(t.TempDir(), "collector.toml")

	cfg, err := LoadCollectorConfigFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "http://bridge:1234", cfg.BridgeURL)
	assert.Equal(t, []AccountConfig{{Username: "carol", Password: "pw"}}, cfg.Accounts)
}

func TestLoadCollectorConfigInvalidToml(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "collector.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_port = \"nope\""), 0644))

	_, err := LoadCollectorConfigFrom(path)
	assert.Error(t, err)
}

func TestLoadWatchConfig(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "watch.toml")

	cfg, err := LoadWatchConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9040", cfg.CollectorHost)
	assert.False(t, cfg.TLSEnabled)

	t.Setenv("USMS_COLLECTOR_HOST", "meter.local:9040")
	cfg, err = LoadWatchConfigFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "meter.local:9040", cfg.CollectorHost)
}
