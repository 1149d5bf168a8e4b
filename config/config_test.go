package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Persistence.FlushSchedule == "" {
		t.Errorf("Persistence.FlushSchedule should have a default")
	}
	if !cfg.Metrics.Enabled {
		t.Errorf("Metrics.Enabled should default true")
	}
}

func TestLoadFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rulecore.yaml")
	yamlContent := "logging:\n  level: debug\nredis:\n  addr: redis.internal:6379\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Redis.Addr = %q, want redis.internal:6379", cfg.Redis.Addr)
	}
	// Values not present in the file keep their New() defaults.
	if cfg.Postgres.MaxOpenConns != 10 {
		t.Errorf("Postgres.MaxOpenConns = %d, want 10 (default)", cfg.Postgres.MaxOpenConns)
	}
}

func TestLoadFile_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info default", cfg.Logging.Level)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RULECORE_LOG_LEVEL", "warn")
	t.Setenv("RULECORE_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn (from env)", cfg.Logging.Level)
	}
}
