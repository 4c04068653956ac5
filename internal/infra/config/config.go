package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
	yaml "go.yaml.in/yaml/v3"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	StorageDriver   string // postgres | sqlite
	DatabaseURL     string
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	Timezone        string
	Location        *time.Location
	AppBaseURL      string

	CronSpecSweep   string
	SweepTimeout    time.Duration
	DedupWindow     time.Duration // sliding window for event-triggered notifications
	InsertBatchSize int
	CacheTTL        time.Duration
	PushRatePerSec  int
}

// fileConfig is the optional YAML base layer. Environment variables override it.
type fileConfig struct {
	TelegramToken   string `yaml:"telegram_token"`
	StorageDriver   string `yaml:"storage_driver"`
	DatabaseURL     string `yaml:"database_url"`
	AdminTelegramID int64  `yaml:"admin_telegram_id"`
	LogLevel        string `yaml:"log_level"`
	Environment     string `yaml:"environment"`
	Timezone        string `yaml:"timezone"`
	AppBaseURL      string `yaml:"app_base_url"`
	CronSpecSweep   string `yaml:"cron_spec_sweep"`
	SweepTimeout    string `yaml:"sweep_timeout"`
	DedupWindow     string `yaml:"dedup_window"`
	InsertBatchSize int    `yaml:"insert_batch_size"`
	CacheTTL        string `yaml:"cache_ttl"`
	PushRatePerSec  int    `yaml:"push_rate_per_sec"`
}

// Load reads configuration from an optional YAML file (CONFIG_FILE), the .env file
// (if present) and environment variables, in increasing order of precedence.
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	var base fileConfig
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &base); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	return build(base, os.Getenv)
}

func build(base fileConfig, getenv func(string) string) (*AppConfig, error) {
	str := func(key, fromFile, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		if fromFile != "" {
			return fromFile
		}
		return def
	}

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = str("TELEGRAM_TOKEN", base.TelegramToken, "") // empty disables the bot

	cfg.StorageDriver = strings.ToLower(str("STORAGE_DRIVER", base.StorageDriver, "postgres"))
	if cfg.StorageDriver != "postgres" && cfg.StorageDriver != "sqlite" {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q: must be postgres or sqlite", cfg.StorageDriver)
	}

	cfg.DatabaseURL = str("DATABASE_URL", base.DatabaseURL, "")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	if adminIDStr := getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	} else {
		cfg.AdminTelegramID = base.AdminTelegramID
	}

	cfg.LogLevel = strings.ToLower(str("LOG_LEVEL", base.LogLevel, "info"))
	cfg.Environment = strings.ToLower(str("ENVIRONMENT", base.Environment, "development"))
	cfg.AppBaseURL = strings.TrimRight(str("APP_BASE_URL", base.AppBaseURL, ""), "/")

	cfg.Timezone = str("TIMEZONE", base.Timezone, "Local")
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	cfg.CronSpecSweep = str("CRON_SPEC_SWEEP", base.CronSpecSweep, "0 9 * * *") // Default: 09:00 daily

	if cfg.SweepTimeout, err = duration("SWEEP_TIMEOUT", str("SWEEP_TIMEOUT", base.SweepTimeout, "5m")); err != nil {
		return nil, err
	}
	if cfg.DedupWindow, err = duration("DEDUP_WINDOW", str("DEDUP_WINDOW", base.DedupWindow, "1h")); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = duration("CACHE_TTL", str("CACHE_TTL", base.CacheTTL, "5m")); err != nil {
		return nil, err
	}

	if cfg.InsertBatchSize, err = positiveInt("INSERT_BATCH_SIZE", getenv("INSERT_BATCH_SIZE"), base.InsertBatchSize, 500); err != nil {
		return nil, err
	}
	if cfg.PushRatePerSec, err = positiveInt("PUSH_RATE_PER_SEC", getenv("PUSH_RATE_PER_SEC"), base.PushRatePerSec, 20); err != nil {
		return nil, err
	}

	return cfg, nil
}

func duration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func positiveInt(key, raw string, fromFile, def int) (int, error) {
	if raw == "" {
		if fromFile > 0 {
			return fromFile, nil
		}
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}
