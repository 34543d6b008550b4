package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRuntimeConfigDefaults(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	if cfg.DBPath != "multitimer.db" || cfg.LogPath != "multitimer.log" {
		t.Fatalf("unexpected path defaults: %+v", cfg)
	}
	if cfg.RequestTimeout != 10*time.Second || cfg.TickInterval != time.Second {
		t.Fatalf("unexpected timing defaults: %+v", cfg)
	}
	if cfg.RetentionDays != 30 || cfg.UserID != 0 {
		t.Fatalf("unexpected runtime defaults: %+v", cfg)
	}
}

func TestRuntimeConfigFromEnv(t *testing.T) {
	t.Setenv("MULTITIMER_DB", "state/timers.db")
	t.Setenv("MULTITIMER_API_BASE_URL", "https://timers.example.com/api/")
	t.Setenv("MULTITIMER_AUTH_TOKEN", "secret")
	t.Setenv("MULTITIMER_USER_ID", "12")
	t.Setenv("MULTITIMER_REQUEST_TIMEOUT_SECONDS", "3")
	t.Setenv("MULTITIMER_TICK_MILLIS", "250")
	t.Setenv("MULTITIMER_RETENTION_DAYS", "0")
	t.Setenv("MULTITIMER_TIMEZONE", "Europe/Berlin")
	t.Setenv("MULTITIMER_LOG_FILE", "logs/mt.log")
	t.Setenv("MULTITIMER_LOG_LEVEL", "DEBUG")

	cfg := RuntimeConfigFromEnv(DefaultRuntimeConfig())
	if cfg.DBPath != "state/timers.db" || cfg.APIBaseURL != "https://timers.example.com/api" {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if cfg.AuthToken != "secret" || cfg.UserID != 12 {
		t.Fatalf("unexpected auth config: %+v", cfg)
	}
	if cfg.RequestTimeout != 3*time.Second || cfg.TickInterval != 250*time.Millisecond {
		t.Fatalf("unexpected timing config: %+v", cfg)
	}
	if cfg.RetentionDays != 0 || cfg.Timezone != "Europe/Berlin" {
		t.Fatalf("unexpected retention/timezone: %+v", cfg)
	}
	if cfg.LogPath != "logs/mt.log" || cfg.Level() != slog.LevelDebug {
		t.Fatalf("unexpected logging config: %+v", cfg)
	}
}

func TestRuntimeConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MULTITIMER_USER_ID", "abc")
	t.Setenv("MULTITIMER_TICK_MILLIS", "-5")
	t.Setenv("MULTITIMER_RETENTION_DAYS", "soon")

	cfg := RuntimeConfigFromEnv(DefaultRuntimeConfig())
	if cfg.UserID != 0 || cfg.TickInterval != time.Second || cfg.RetentionDays != 30 {
		t.Fatalf("invalid values must be ignored: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
db_path: /var/lib/multitimer.db
api_base_url: https://api.example.com/
user_id: 99
request_timeout_seconds: 20
retention_days: 0
timezone: UTC
log_level: warn
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFile(path, DefaultRuntimeConfig())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/var/lib/multitimer.db" || cfg.APIBaseURL != "https://api.example.com" || cfg.UserID != 99 {
		t.Fatalf("unexpected file values: %+v", cfg)
	}
	if cfg.RequestTimeout != 20*time.Second || cfg.RetentionDays != 0 {
		t.Fatalf("unexpected timing values: %+v", cfg)
	}
	if cfg.TickInterval != time.Second || cfg.LogPath != "multitimer.log" {
		t.Fatalf("unset keys must keep defaults: %+v", cfg)
	}
	if cfg.Location() != time.UTC || cfg.Level() != slog.LevelWarn {
		t.Fatalf("unexpected derived values: %+v", cfg)
	}
}

func TestLoadFileMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFile(filepath.Join(dir, "absent.yaml"), DefaultRuntimeConfig())
	if err != nil || cfg != DefaultRuntimeConfig() {
		t.Fatalf("missing file must return base config, got %+v (%v)", cfg, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("user_id: [1, 2"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadFile(bad, DefaultRuntimeConfig()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := DefaultRuntimeConfig()
	cfg.Timezone = "Mars/Olympus"
	if cfg.Location() != time.Local {
		t.Fatal("expected local zone for unknown timezone")
	}
}
