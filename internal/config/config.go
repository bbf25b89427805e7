package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	DBPath        string           `json:"db_path"`
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	FileStore     FileStoreConfig  `json:"file_store"`
	Import        ImportConfig     `json:"import"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ImportConfig tunes the background import runner. Zero values fall back to
// the defaults below on load.
type ImportConfig struct {
	Workers                 int   `json:"workers"`
	MaxAttempts             int   `json:"max_attempts"`
	RetryBackoffSeconds     int   `json:"retry_backoff_seconds"`
	PollIntervalSeconds     int   `json:"poll_interval_seconds"`
	CompletedRetentionHours int   `json:"completed_retention_hours"`
	FailedRetentionHours    int   `json:"failed_retention_hours"`
	CleanupSpec             string `json:"cleanup_spec"`
	MaxUploadBytes          int64 `json:"max_upload_bytes"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db_path is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	applyImportDefaults(&cfg.Import)
	return &cfg, nil
}

func applyImportDefaults(cfg *ImportConfig) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBackoffSeconds <= 0 {
		cfg.RetryBackoffSeconds = 5
	}
	if cfg.PollIntervalSeconds <= 0 {
		cfg.PollIntervalSeconds = 1
	}
	if cfg.CompletedRetentionHours <= 0 {
		cfg.CompletedRetentionHours = 1
	}
	if cfg.FailedRetentionHours <= 0 {
		cfg.FailedRetentionHours = 24
	}
	if cfg.CleanupSpec == "" {
		cfg.CleanupSpec = "*/10 * * * *"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 * 1024 * 1024
	}
}
