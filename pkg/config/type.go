package config

import "time"

const (
	DefaultScanIntervalSeconds = 3600
	MinScanIntervalSeconds     = 300
)

type CollectorConfig struct {
	ListenAddress       string          `toml:"listen_address"`
	ListenPort          int             `toml:"listen_port"`
	DatabasePath        string          `toml:"database_path"`
	LogLevel            string          `toml:"log_level"`
	ScanIntervalSeconds int             `toml:"scan_interval_seconds"`
	BackfillOnColdStart bool            `toml:"backfill_on_cold_start"`
	BridgeURL           string          `toml:"bridge_url"`
	Accounts            []AccountConfig `toml:"accounts"`
}

type AccountConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

// ScanInterval is the polling interval of every account coordinator.
func (c *CollectorConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalSeconds) * time.Second
}

type WatchConfig struct {
	CollectorHost string `toml:"collector_host"`
	TLSEnabled    bool   `toml:"tls_enabled"`
}
