package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// getRaw fetches the raw stored bytes for key, reporting whether it exists.
func (c *Cache) getRaw(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, mapErr(err, "get setting")
	}
	return value, true, nil
}

// setRaw stores raw bytes under key, replacing any existing value.
func (c *Cache) setRaw(ctx context.Context, key string, value []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return mapErr(err, "set setting")
}

// Settings is a typed, JSON-encoding proxy over the opaque settings table,
// carried over from backathon's util.Settings/SimpleSetting descriptor
// pair: every repository-wide configuration value (storage backend choice,
// compression/encryption flags, public key, MAC key) goes through here
// instead of bespoke columns.
type Settings struct {
	cache *Cache
}

// Settings returns the typed settings proxy bound to this cache.
func (c *Cache) Settings() *Settings {
	return &Settings{cache: c}
}

// Get decodes the JSON value stored under key into dest, a pointer. Returns
// false if the key has never been set.
func (s *Settings) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok, err := s.cache.getRaw(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, fmt.Errorf("cache: decode setting %q: %w", key, err)
	}
	return true, nil
}

// GetOr decodes the value stored under key into dest, leaving dest
// untouched (its zero/default value) if the key has never been set.
func (s *Settings) GetOr(ctx context.Context, key string, dest interface{}) error {
	_, err := s.Get(ctx, key, dest)
	return err
}

// Set JSON-encodes value and stores it under key.
func (s *Settings) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode setting %q: %w", key, err)
	}
	return s.cache.setRaw(ctx, key, raw)
}

// Has reports whether key has ever been set.
func (s *Settings) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.cache.getRaw(ctx, key)
	return ok, err
}

// Well-known setting keys for repository-wide choices. No command writes or
// reads them: `coldvault init` records these choices in the configuration
// file, and every command takes them from there.
const (
	SettingStorageBackend = "storage.backend"
	SettingCompression    = "crypto.compression_enabled"
	SettingEncryption     = "crypto.encryption_enabled"
	SettingPublicKey      = "crypto.public_key"
	SettingMACKey         = "crypto.mac_key"
	SettingRecoveryObject = "crypto.recovery_object"
)
