package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coldvault/coldvault/internal/logger"
	"github.com/coldvault/coldvault/internal/telemetry/metrics"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/coldvaulterr"
	"github.com/coldvault/coldvault/pkg/config"
	"github.com/coldvault/coldvault/pkg/cryptoframe"
	"github.com/coldvault/coldvault/pkg/repository"
	"github.com/coldvault/coldvault/pkg/statusapi"
	"github.com/coldvault/coldvault/pkg/store"
	"github.com/coldvault/coldvault/pkg/store/b2"
	"github.com/coldvault/coldvault/pkg/store/local"
	"github.com/coldvault/coldvault/pkg/store/s3"
)

// loadConfig loads and validates the configuration named by the --config
// flag, or the default location.
func loadConfig() (*config.Config, error) {
	return config.MustLoad(GetConfigFile())
}

// buildLogger initializes the process-wide structured logger from cfg and
// returns a bound *slog.Logger for handing to package constructors.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.With(), nil
}

// openCache opens the metadata cache named by cfg.Cache.
func openCache(ctx context.Context, cfg *config.Config, log *slog.Logger) (*cache.Cache, error) {
	return cache.Open(ctx, cache.Config{
		Path:               cfg.Cache.Path,
		CheckpointInterval: cfg.Cache.CheckpointInterval,
		Logger:             log,
	})
}

// openStore constructs the storage adapter cfg.Storage.Backend selects.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "local":
		return local.New(cfg.Storage.Local.Path)
	case "s3":
		return s3.NewFromConfig(ctx, s3.Config{
			Bucket:         cfg.Storage.S3.Bucket,
			Region:         cfg.Storage.S3.Region,
			Endpoint:       cfg.Storage.S3.Endpoint,
			KeyPrefix:      cfg.Storage.S3.KeyPrefix,
			ForcePathStyle: cfg.Storage.S3.ForcePathStyle,
		})
	case "b2":
		return b2.New(b2.Config{
			AccountID:      cfg.Storage.B2.AccountID,
			ApplicationKey: cfg.Storage.B2.ApplicationKey,
			Bucket:         cfg.Storage.B2.Bucket,
		}), nil
	default:
		return nil, coldvaulterr.New(coldvaulterr.CodeConfiguration, fmt.Sprintf("unknown storage backend %q", cfg.Storage.Backend))
	}
}

// openRepository assembles a Repository from cfg, an already-open cache,
// and store s, wiring in the public-key MAC and frame options encryption
// requires.
func openRepository(cfg *config.Config, c *cache.Cache, s store.Store, opts ...repository.Option) (*repository.Repository, error) {
	var macKey []byte
	var pub *[32]byte
	var err error
	if cfg.Crypto.EncryptionEnabled {
		pub, err = loadPublicKey(cfg.Crypto.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		macKey = pub[:]
	}

	frameOpts := cryptoframe.Options{
		Compress:  cfg.Crypto.CompressionEnabled,
		Encrypt:   cfg.Crypto.EncryptionEnabled,
		PublicKey: pub,
	}
	return repository.New(c, s, macKey, frameOpts, opts...), nil
}

// openRepositoryForRead is like openRepository but also recovers the
// repository's private key when the repository is encrypted, prompting
// for the passphrase that protects it. Object reads (restore) need the
// private key to decrypt; object writes (backup) only need the public
// key, so backup keeps using openRepository directly.
func openRepositoryForRead(cfg *config.Config, c *cache.Cache, s store.Store, opts ...repository.Option) (*repository.Repository, error) {
	if !cfg.Crypto.EncryptionEnabled {
		return openRepository(cfg, c, s, opts...)
	}

	pub, err := loadPublicKey(cfg.Crypto.PublicKeyPath)
	if err != nil {
		return nil, err
	}

	ro, err := loadRecoveryObject(recoveryObjectPath())
	if err != nil {
		return nil, fmt.Errorf("load recovery object (needed to unlock the private key): %w", err)
	}

	prompt := promptui.Prompt{
		Label: "Passphrase to unlock the repository private key",
		Mask:  '*',
	}
	passphrase, err := prompt.Run()
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}

	kp, err := cryptoframe.UnwrapPrivateKey(ro, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("unwrap private key: %w", err)
	}

	frameOpts := cryptoframe.Options{
		Compress:   cfg.Crypto.CompressionEnabled,
		Encrypt:    true,
		PublicKey:  pub,
		PrivateKey: &kp.Private,
	}
	return repository.New(c, s, pub[:], frameOpts, opts...), nil
}

// maybeStartStatusAPI starts the optional status HTTP server if
// cfg.StatusAPI.Enabled, returning a progress tracker and a set of
// Prometheus collectors long-running commands should feed, plus a stop
// function the caller must defer. When disabled, returns nil tracker and
// metrics and a no-op stop function; both are nil-safe to pass into
// scanner/backup/gc/repository's WithMetrics and into withProgress.
func maybeStartStatusAPI(ctx context.Context, cfg *config.Config, log *slog.Logger) (*statusapi.Tracker, *metrics.Collectors, func(), error) {
	if !cfg.StatusAPI.Enabled {
		return nil, nil, func() {}, nil
	}

	srv, token, err := statusapi.New(cfg.StatusAPI.Port, cfg.StatusAPI.AuthToken, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("start status API: %w", err)
	}

	collectors := metrics.New(prometheus.DefaultRegisterer)

	serverCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Start(serverCtx); err != nil {
			log.Error("status API server error", "error", err)
		}
	}()

	fmt.Printf("Status API listening on 127.0.0.1:%d (bearer token: %s)\n", cfg.StatusAPI.Port, token)

	return srv.Tracker(), collectors, func() {
		cancel()
		<-done
	}, nil
}

// withProgress wraps a done/total callback so it also feeds tracker,
// tolerating a nil tracker when the status API is disabled.
func withProgress(tracker *statusapi.Tracker, operation string, next func(done, total int)) func(done, total int) {
	return func(done, total int) {
		if tracker != nil {
			tracker.Set(operation, done, total)
		}
		next(done, total)
	}
}

func unixSeconds(sec int64) string {
	return time.Unix(sec, 0).Format(time.RFC3339)
}

const recoveryObjectKey = "recovery"

// loadPublicKey reads the raw 32-byte public key written by "coldvault init".
func loadPublicKey(path string) (*[32]byte, error) {
	if path == "" {
		return nil, coldvaulterr.New(coldvaulterr.CodeConfiguration, "crypto.encryption_enabled is true but crypto.public_key_path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeConfiguration, "read public key", err)
	}
	if len(data) != 32 {
		return nil, coldvaulterr.New(coldvaulterr.CodeConfiguration, fmt.Sprintf("public key file %s: expected 32 bytes, got %d", path, len(data)))
	}
	var pub [32]byte
	copy(pub[:], data)
	return &pub, nil
}

func savePublicKey(path string, pub [32]byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	return os.WriteFile(path, pub[:], 0o644)
}

// recoveryObjectPath mirrors spec.md §4.2's "well-known configuration file"
// alongside the rest of coldvault's local state.
func recoveryObjectPath() string {
	return filepath.Join(config.GetConfigDir(), "recovery.json")
}

func saveRecoveryObject(path string, ro *cryptoframe.RecoveryObject) error {
	data, err := json.MarshalIndent(ro, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal recovery object: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create recovery directory: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func loadRecoveryObject(path string) (*cryptoframe.RecoveryObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recovery object: %w", err)
	}
	var ro cryptoframe.RecoveryObject
	if err := json.Unmarshal(data, &ro); err != nil {
		return nil, fmt.Errorf("parse recovery object: %w", err)
	}
	return &ro, nil
}

// ensureRecoveryObjectUploaded uploads the local recovery object to the
// repository under its well-known key the first time a backup runs,
// matching spec.md §4.2's "stored both locally and in the repository"
// requirement. A no-op once the remote copy already exists.
func ensureRecoveryObjectUploaded(ctx context.Context, s store.Store) error {
	if rc, _, err := s.Download(ctx, recoveryObjectKey); err == nil {
		rc.Close()
		return nil
	} else if err != store.ErrNotFound {
		return fmt.Errorf("check remote recovery object: %w", err)
	}

	data, err := os.ReadFile(recoveryObjectPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read local recovery object: %w", err)
	}

	_, err = s.Upload(ctx, recoveryObjectKey, bytes.NewReader(data))
	return err
}
