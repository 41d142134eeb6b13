package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/usms_meter/pkg/pathing"
	"github.com/gosimple/slug"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

var (
	ActiveCollectorConfig *CollectorConfig
	ActiveWatchConfig     *WatchConfig
)

func LoadCollectorConfig() error {
	loadDotEnv()
	cfg, err := LoadCollectorConfigFrom(filepath.Join(pathing.GetConfigDir(), "collector.toml"))
	if err != nil {
		return err
	}
	ActiveCollectorConfig = cfg
	return nil
}

// LoadCollectorConfigFrom reads the collector config at configPath, writing
// the defaults there first if the file does not exist. Environment overrides
// are applied after decoding.
func LoadCollectorConfigFrom(configPath string) (*CollectorConfig, error) {
	cfg := &CollectorConfig{
		ListenAddress:       "0.0.0.0",
		ListenPort:          9040,
		DatabasePath:        pathing.GetStatisticsDbPath(),
		LogLevel:            "info",
		ScanIntervalSeconds: DefaultScanIntervalSeconds,
		BackfillOnColdStart: true,
		BridgeURL:           "http://localhost:8099",
		Accounts:            []AccountConfig{},
	}

	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}

	applyCollectorEnv(cfg)

	if cfg.ScanIntervalSeconds <= 0 {
		cfg.ScanIntervalSeconds = DefaultScanIntervalSeconds
	}
	if cfg.ScanIntervalSeconds < MinScanIntervalSeconds {
		log.Warnf("Scan interval of %ds is below the minimum, using %ds", cfg.ScanIntervalSeconds, MinScanIntervalSeconds)
		cfg.ScanIntervalSeconds = MinScanIntervalSeconds
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = pathing.GetStatisticsDbPath()
	}
	cfg.Accounts = dedupeAccounts(cfg.Accounts)

	return cfg, nil
}

func LoadWatchConfig() error {
	loadDotEnv()
	cfg, err := LoadWatchConfigFrom(filepath.Join(pathing.GetConfigDir(), "watch.toml"))
	if err != nil {
		return err
	}
	ActiveWatchConfig = cfg
	return nil
}

func LoadWatchConfigFrom(configPath string) (*WatchConfig, error) {
	cfg := &WatchConfig{
		CollectorHost: "localhost:9040",
		TLSEnabled:    false,
	}
	if err := loadOrCreate(configPath, cfg); err != nil {
		return nil, err
	}
	if host := os.Getenv("USMS_COLLECTOR_HOST"); host != "" {
		cfg.CollectorHost = host
	}
	return cfg, nil
}

// loadOrCreate decodes configPath into cfg. A missing file is created
// holding the values cfg already has.
func loadOrCreate(configPath string, cfg any) error {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("failed to create default config %s: %w", configPath, err)
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
			return fmt.Errorf("failed to write default config %s: %w", configPath, err)
		}
		log.Infof("Wrote default config to %s", configPath)
		return nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return nil
}

func loadDotEnv() {
	envPath := filepath.Join(pathing.GetConfigDir(), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("Failed to load %s: %v", envPath, err)
	}
}

func applyCollectorEnv(cfg *CollectorConfig) {
	if level := os.Getenv("USMS_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if url := os.Getenv("USMS_BRIDGE_URL"); url != "" {
		cfg.BridgeURL = url
	}
	username, password := os.Getenv("USMS_USERNAME"), os.Getenv("USMS_PASSWORD")
	if username != "" && password != "" {
		cfg.Accounts = append(cfg.Accounts, AccountConfig{Username: username, Password: password})
	}
}

// dedupeAccounts keeps the first account per username slug, dropping
// accounts without credentials.
func dedupeAccounts(accounts []AccountConfig) []AccountConfig {
	seen := make(map[string]bool, len(accounts))
	result := make([]AccountConfig, 0, len(accounts))
	for _, a := range accounts {
		if a.Username == "" || a.Password == "" {
			log.Warn("Skipping account without username or password")
			continue
		}
		id := slug.Make(a.Username)
		if seen[id] {
			log.Warnf("Account %s is configured more than once", a.Username)
			continue
		}
		seen[id] = true
		result = append(result, a)
	}
	return result
}
