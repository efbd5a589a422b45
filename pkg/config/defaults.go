package config

import (
	"runtime"
	"strings"
	"time"
)

// GetDefaultConfig returns a Config with every field set to its default value.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unspecified configuration fields with sensible defaults.
// Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyCacheDefaults(&cfg.Cache)
	applyStorageDefaults(&cfg.Storage)
	applyBackupDefaults(&cfg.Backup)
	applyGCDefaults(&cfg.GC)
	applyStatusAPIDefaults(&cfg.StatusAPI)
	applyMetricsDefaults(&cfg.Metrics)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Path == "" {
		cfg.Path = getConfigDir() + "/cache.db"
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Backend == "" {
		cfg.Backend = "local"
	}
	if cfg.Backend == "local" && cfg.Local.Path == "" {
		cfg.Local.Path = getConfigDir() + "/objects"
	}
	if cfg.Backend == "s3" && cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
}

// applyBackupDefaults mirrors backathon's NUM_WORKERS = os.cpu_count() and
// BATCH_SIZE = 100, and spec.md's fixed 1MiB chunk / 2MiB inline threshold.
func applyBackupDefaults(cfg *BackupConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1 << 20 // 1MiB
	}
	if cfg.InlineThreshold == 0 {
		cfg.InlineThreshold = 2 << 20 // 2MiB
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.FalsePositiveRate == 0 {
		cfg.FalsePositiveRate = 0.05
	}
	if cfg.HashFunctions == 0 {
		cfg.HashFunctions = 4
	}
}

func applyStatusAPIDefaults(cfg *StatusAPIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 7890
	}
}
