// Package config loads and validates coldvault's runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the top-level coldvault configuration.
//
// Configuration sources, in order of precedence (highest first):
//  1. CLI flags
//  2. Environment variables (COLDVAULT_*)
//  3. Configuration file (YAML)
//  4. Default values
type Config struct {
	// Logging controls structured log output.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout bounds how long a long-running command waits for
	// in-flight work to drain after a SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Cache configures the local metadata cache (the embedded sqlite database).
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Storage selects and configures the object storage backend.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Crypto configures payload compression and encryption.
	Crypto CryptoConfig `mapstructure:"crypto" yaml:"crypto"`

	// Backup configures the backup pipeline's chunking and concurrency.
	Backup BackupConfig `mapstructure:"backup" yaml:"backup"`

	// GC configures the garbage collector's bloom filter parameters.
	GC GCConfig `mapstructure:"gc" yaml:"gc"`

	// StatusAPI configures the optional local HTTP status/progress server.
	StatusAPI StatusAPIConfig `mapstructure:"status_api" yaml:"status_api"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects the log encoding: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled turns on OTLP span export. Default: false.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure disables TLS on the OTLP gRPC connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the trace sampling ratio, 0.0-1.0.
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling controls Pyroscope continuous profiling.
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// CacheConfig configures the local metadata cache database.
type CacheConfig struct {
	// Path is the sqlite database file holding fsentry/objects/snapshots/settings.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// CheckpointInterval bounds how often a long scan forces a WAL checkpoint.
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" yaml:"checkpoint_interval"`
}

// StorageConfig selects and configures the object storage backend.
type StorageConfig struct {
	// Backend selects the adapter: "local", "s3", or "b2".
	Backend string `mapstructure:"backend" validate:"required,oneof=local s3 b2" yaml:"backend"`

	Local LocalStorageConfig `mapstructure:"local" yaml:"local"`
	S3    S3StorageConfig    `mapstructure:"s3" yaml:"s3"`
	B2    B2StorageConfig    `mapstructure:"b2" yaml:"b2"`
}

// LocalStorageConfig configures the filesystem storage adapter.
type LocalStorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// S3StorageConfig configures the S3-compatible storage adapter.
type S3StorageConfig struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
	Region         string `mapstructure:"region" yaml:"region"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	KeyPrefix      string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// B2StorageConfig configures the Backblaze B2 storage adapter.
type B2StorageConfig struct {
	AccountID      string `mapstructure:"account_id" yaml:"account_id"`
	ApplicationKey string `mapstructure:"application_key" yaml:"application_key,omitempty"`
	Bucket         string `mapstructure:"bucket" yaml:"bucket"`
}

// CryptoConfig configures payload compression and encryption.
type CryptoConfig struct {
	// CompressionEnabled wraps every payload in a zlib stream before upload.
	CompressionEnabled bool `mapstructure:"compression_enabled" yaml:"compression_enabled"`

	// EncryptionEnabled seals every payload with the repository's public key.
	EncryptionEnabled bool `mapstructure:"encryption_enabled" yaml:"encryption_enabled"`

	// PublicKeyPath holds the NaCl box public key used for sealing.
	// Only required when EncryptionEnabled is true.
	PublicKeyPath string `mapstructure:"public_key_path" validate:"required_if=EncryptionEnabled true" yaml:"public_key_path,omitempty"`
}

// BackupConfig configures the backup pipeline.
type BackupConfig struct {
	// Workers is the size of the backup worker pool.
	// Default: number of CPUs.
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// BatchSize is accepted and validated but not read: the pipeline claims
	// backup.BatchSize ready entries per outer-loop iteration.
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,min=1" yaml:"batch_size"`

	// Single is accepted but not read: the inline (single-goroutine)
	// executor is selected only by the backup command's --single flag.
	Single bool `mapstructure:"single" yaml:"single"`

	// ChunkSize is accepted and validated but not read: regular files are
	// split at the fixed chunker.ChunkSize.
	ChunkSize int64 `mapstructure:"chunk_size" validate:"omitempty,gt=0" yaml:"chunk_size"`

	// InlineThreshold is accepted and validated but not read: the size below
	// which content is stored as a single inline blob is the fixed
	// chunker.InlineThreshold.
	InlineThreshold int64 `mapstructure:"inline_threshold" validate:"omitempty,gt=0" yaml:"inline_threshold"`
}

// GCConfig configures the bloom-filter garbage collector.
type GCConfig struct {
	// FalsePositiveRate is accepted and validated but not read: pkg/gc sizes
	// its bloom filter for a fixed false-positive rate of 0.05.
	FalsePositiveRate float64 `mapstructure:"false_positive_rate" validate:"omitempty,gt=0,lt=1" yaml:"false_positive_rate"`

	// HashFunctions is accepted and validated but not read: pkg/gc's bloom
	// filter always uses 4 hash functions.
	HashFunctions int `mapstructure:"hash_functions" validate:"omitempty,min=1" yaml:"hash_functions"`
}

// StatusAPIConfig configures the optional local HTTP status server exposed
// during long-running backup/gc/restore runs.
type StatusAPIConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Port      int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	AuthToken string `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
}

// Load loads configuration from file, environment, and defaults, applying
// validation after merging.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	found, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration, returning a user-friendly error when the
// config file cannot be found at all.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"initialize one first:\n"+
				"  coldvault init\n\n"+
				"or specify a custom config file:\n"+
				"  coldvault <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	return Load(configPath)
}

// SaveConfig writes cfg to path as YAML, creating parent directories as needed.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may eventually carry storage credentials.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("COLDVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}

	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

var structValidator = validator.New()

// Validate runs go-playground/validator's struct-tag validation over cfg.
func Validate(cfg *Config) error {
	return structValidator.Struct(cfg)
}

func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "coldvault")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "coldvault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
