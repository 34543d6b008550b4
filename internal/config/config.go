package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type RuntimeConfig struct {
	DBPath         string
	APIBaseURL     string
	AuthToken      string
	UserID         int64
	RequestTimeout time.Duration
	TickInterval   time.Duration
	RetentionDays  int
	Timezone       string
	LogPath        string
	LogLevel       string
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DBPath:         "multitimer.db",
		APIBaseURL:     "http://localhost:8080/api",
		RequestTimeout: 10 * time.Second,
		TickInterval:   time.Second,
		RetentionDays:  30,
		LogPath:        "multitimer.log",
		LogLevel:       "info",
	}
}

func RuntimeConfigFromEnv(base RuntimeConfig) RuntimeConfig {
	cfg := base
	if v, ok := getEnvString("MULTITIMER_DB"); ok {
		cfg.DBPath = v
	}
	if v, ok := getEnvString("MULTITIMER_API_BASE_URL"); ok {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := getEnvString("MULTITIMER_AUTH_TOKEN"); ok {
		cfg.AuthToken = v
	}
	if v, ok := getEnvInt("MULTITIMER_USER_ID"); ok && v > 0 {
		cfg.UserID = int64(v)
	}
	if v, ok := getEnvInt("MULTITIMER_REQUEST_TIMEOUT_SECONDS"); ok && v > 0 {
		cfg.RequestTimeout = time.Duration(v) * time.Second
	}
	if v, ok := getEnvInt("MULTITIMER_TICK_MILLIS"); ok && v > 0 {
		cfg.TickInterval = time.Duration(v) * time.Millisecond
	}
	if v, ok := getEnvInt("MULTITIMER_RETENTION_DAYS"); ok && v >= 0 {
		cfg.RetentionDays = v
	}
	if v, ok := getEnvString("MULTITIMER_TIMEZONE"); ok {
		cfg.Timezone = v
	}
	if v, ok := getEnvString("MULTITIMER_LOG_FILE"); ok {
		cfg.LogPath = v
	}
	if v, ok := getEnvString("MULTITIMER_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	return cfg
}

// Location resolves Timezone, falling back to the local zone.
func (c RuntimeConfig) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c RuntimeConfig) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnvString(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func getEnvInt(name string) (int, bool) {
	raw, ok := getEnvString(name)
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}
