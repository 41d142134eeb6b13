package pathing

import (
	"os"
	"path/filepath"
)

const (
	defaultDataDir   = "/var/lib/usms_meter"
	defaultConfigDir = "/etc/usms_meter"
)

// EnsureDirs creates the data and config directories if they do not exist yet.
func EnsureDirs() error {
	for _, dir := range []string{GetDataDir(), GetConfigDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func GetStatisticsDbPath() string {
	return filepath.Join(GetDataDir(), "usms-statistics.db")
}

// GetDataDir can be moved with USMS_DATA_DIR.
func GetDataDir() string {
	if dir := os.Getenv("USMS_DATA_DIR"); dir != "" {
		return dir
	}
	return defaultDataDir
}

// GetConfigDir can be moved with USMS_CONFIG_DIR.
func GetConfigDir() string {
	if dir := os.Getenv("USMS_CONFIG_DIR"); dir != "" {
		return dir
	}
	return defaultConfigDir
}
