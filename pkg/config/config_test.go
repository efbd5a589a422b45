package config

import (
	"path/filepath"
	"testing"
)

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("expected default logging level, got %q", cfg.Logging.Level)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := GetDefaultConfig()
	original.Storage.Backend = "s3"
	original.Storage.S3.Bucket = "my-backups"
	original.Backup.Workers = 6

	if err := SaveConfig(original, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Storage.Backend != "s3" {
		t.Errorf("expected storage backend s3, got %q", loaded.Storage.Backend)
	}
	if loaded.Storage.S3.Bucket != "my-backups" {
		t.Errorf("expected bucket my-backups, got %q", loaded.Storage.S3.Bucket)
	}
	if loaded.Backup.Workers != 6 {
		t.Errorf("expected 6 workers, got %d", loaded.Backup.Workers)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := SaveConfig(GetDefaultConfig(), path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	t.Setenv("COLDVAULT_LOGGING_LEVEL", "DEBUG")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("expected environment override DEBUG, got %q", cfg.Logging.Level)
	}
}

func TestDefaultConfigPath_UsesXDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	want := filepath.Join(dir, "coldvault", "config.yaml")
	if got := GetDefaultConfigPath(); got != want {
		t.Errorf("expected default config path %q, got %q", want, got)
	}
}
