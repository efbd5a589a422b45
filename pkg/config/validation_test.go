package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("expected default config to pass validation, got: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "TRACE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStorageBackend(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Backend = "ftp"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unsupported storage backend")
	}
}

func TestValidate_MissingCachePath(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Cache.Path = ""

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for missing cache path")
	}
}

func TestValidate_EncryptionRequiresPublicKey(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Crypto.EncryptionEnabled = true
	cfg.Crypto.PublicKeyPath = ""

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error when encryption is enabled without a public key path")
	}
}

func TestValidate_TelemetrySampleRateOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for sample rate out of range")
	}
}

func TestValidate_MetricsPortOutOfRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for metrics port out of range")
	}
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"info", "INFO", "debug", "DEBUG", "warn", "error"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level

		if err := Validate(cfg); err != nil {
			t.Errorf("validation failed for level %q: %v", level, err)
		}
	}
}
