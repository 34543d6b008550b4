package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

type yamlConfig struct {
	DBPath                string `yaml:"db_path"`
	APIBaseURL            string `yaml:"api_base_url"`
	AuthToken             string `yaml:"auth_token"`
	UserID                int64  `yaml:"user_id"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	TickMillis            int    `yaml:"tick_millis"`
	RetentionDays         *int   `yaml:"retention_days"`
	Timezone              string `yaml:"timezone"`
	LogFile               string `yaml:"log_file"`
	LogLevel              string `yaml:"log_level"`
}

// DefaultPath is the config file under the user's config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "multitimer", fileName), nil
}

// LoadFile applies the YAML file at path over base. A missing file leaves base
// unchanged.
func LoadFile(path string, base RuntimeConfig) (RuntimeConfig, error) {
	cfg := base
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var fileData yamlConfig
	if err := yaml.Unmarshal(raw, &fileData); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	applyYAML(&cfg, fileData)
	return cfg, nil
}

func applyYAML(cfg *RuntimeConfig, f yamlConfig) {
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
	if f.APIBaseURL != "" {
		cfg.APIBaseURL = strings.TrimRight(f.APIBaseURL, "/")
	}
	if f.AuthToken != "" {
		cfg.AuthToken = f.AuthToken
	}
	if f.UserID > 0 {
		cfg.UserID = f.UserID
	}
	if f.RequestTimeoutSeconds > 0 {
		cfg.RequestTimeout = time.Duration(f.RequestTimeoutSeconds) * time.Second
	}
	if f.TickMillis > 0 {
		cfg.TickInterval = time.Duration(f.TickMillis) * time.Millisecond
	}
	if f.RetentionDays != nil && *f.RetentionDays >= 0 {
		cfg.RetentionDays = *f.RetentionDays
	}
	if f.Timezone != "" {
		cfg.Timezone = f.Timezone
	}
	if f.LogFile != "" {
		cfg.LogPath = f.LogFile
	}
	if f.LogLevel != "" {
		cfg.LogLevel = strings.ToLower(f.LogLevel)
	}
}
