// Package scanner implements coldvault's breadth-first filesystem scanner
// (spec.md §4.4): it walks registered backup roots, comparing cached stat
// metadata against the live filesystem, and marks changed entries dirty so
// the backup pipeline knows what to re-upload.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/coldvault/coldvault/internal/telemetry/metrics"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/coldvaulterr"
)

// Scanner drives scan passes against a metadata cache.
type Scanner struct {
	cache              *cache.Cache
	logger             *slog.Logger
	checkpointInterval time.Duration
	metrics            *metrics.Collectors
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger overrides the scanner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithMetrics wires Prometheus collectors into the scanner, exposed over
// the optional status API server when enabled.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Scanner) { s.metrics = m }
}

// WithCheckpointInterval overrides how often a long-running scan pass
// force-checkpoints the WAL. Zero disables periodic checkpointing.
func WithCheckpointInterval(d time.Duration) Option {
	return func(s *Scanner) { s.checkpointInterval = d }
}

// New returns a Scanner bound to c.
func New(c *cache.Cache, opts ...Option) *Scanner {
	s := &Scanner{cache: c, logger: slog.Default(), checkpointInterval: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddRoot registers path as a new backup root. path must be an existing
// directory and must not already be tracked. The returned entry is new and
// dirty; callers should run Scan afterward (optionally with
// onlyNew set, mirroring backathon's addroot --skip-scan split).
func (s *Scanner) AddRoot(ctx context.Context, path string) (*cache.FSEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, coldvaulterr.Wrap(coldvaulterr.CodeFilesystemTransient, "add root: stat failed", err)
	}
	if !info.IsDir() {
		return nil, coldvaulterr.New(coldvaulterr.CodeContractViolation, fmt.Sprintf("add root: %q is not a directory", abs))
	}

	if existing, err := s.cache.GetFSEntryByPath(ctx, []byte(abs)); err == nil && existing != nil {
		return nil, coldvaulterr.New(coldvaulterr.CodeContractViolation, fmt.Sprintf("add root: %q is already tracked", abs))
	}

	return s.cache.CreateFSEntry(ctx, []byte(abs), nil)
}

// DelRoot removes a backup root and, via the cache's cascading delete,
// every entry beneath it.
func (s *Scanner) DelRoot(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("scanner: resolve %q: %w", path, err)
	}

	entry, err := s.cache.GetFSEntryByPath(ctx, []byte(abs))
	if err != nil {
		return coldvaulterr.Wrap(coldvaulterr.CodeNotFound, fmt.Sprintf("del root: %q is not tracked", abs), err)
	}
	if entry.ParentID != nil {
		return coldvaulterr.New(coldvaulterr.CodeContractViolation, fmt.Sprintf("del root: %q is not a root", abs))
	}
	return s.cache.DeleteFSEntry(ctx, entry.ID)
}

// ListRoots returns every currently registered backup root.
func (s *Scanner) ListRoots(ctx context.Context) ([]*cache.FSEntry, error) {
	return s.cache.Roots(ctx)
}

// ProgressFunc reports scan progress. total is nil once the scanner moves
// from the "re-check existing entries" pass into the "drain newly
// discovered entries" pass, where the final count isn't known up front.
type ProgressFunc func(done int, total *int)

// Scan performs a full breadth-first scan: first re-stats every existing
// entry, then repeatedly drains newly discovered entries (each scan of a
// directory may create new FSEntry rows for new children) until a pass
// finds nothing left to do. This converges because the filesystem tree is
// finite and each new entry is marked scanned before it can spawn further
// new entries.
func (s *Scanner) Scan(ctx context.Context, onlyNew bool, progress ProgressFunc) error {
	scanned := 0
	lastCheckpoint := time.Now()

	maybeCheckpoint := func() error {
		if s.checkpointInterval <= 0 || time.Since(lastCheckpoint) < s.checkpointInterval {
			return nil
		}
		lastCheckpoint = time.Now()
		return s.cache.Checkpoint(ctx)
	}

	if !onlyNew {
		entries, err := s.cache.AllFSEntries(ctx)
		if err != nil {
			return err
		}
		total := len(entries)
		for _, e := range entries {
			if err := s.scanEntry(ctx, e); err != nil {
				return err
			}
			scanned++
			if s.metrics != nil {
				s.metrics.ScanEntriesTotal.Set(float64(scanned))
			}
			if progress != nil {
				progress(scanned, &total)
			}
			if err := maybeCheckpoint(); err != nil {
				return err
			}
		}
	}

	for {
		newEntries, err := s.cache.NewFSEntries(ctx)
		if err != nil {
			return err
		}
		if len(newEntries) == 0 {
			break
		}

		for _, e := range newEntries {
			if err := s.scanEntry(ctx, e); err != nil {
				return err
			}
			scanned++
			if progress != nil {
				progress(scanned, nil)
			}
			if err := maybeCheckpoint(); err != nil {
				return err
			}
		}
	}

	return s.analyze(ctx)
}
