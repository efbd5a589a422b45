package commands

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/backup"
	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/config"
	"github.com/coldvault/coldvault/pkg/scanner"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch registered roots and scan+backup incrementally on change",
	Long: `watch is a supplemental daemon mode layered strictly on top of
"scan" and "backup": it does not change either command's semantics, it
just triggers them on inotify events instead of on a schedule. Disabled
by default; this is a separate command, never implied by the others.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period after the last filesystem event before triggering a scan+backup")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	c, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	roots, err := c.Roots(ctx)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		return fmt.Errorf("no backup roots registered; run addroot first")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range roots {
		if err := addWatchesRecursive(watcher, string(root.Path)); err != nil {
			log.Warn("could not fully watch root", "root", string(root.Path), "error", err)
		}
	}

	fmt.Printf("Watching %d root(s), debounce %s. Press Ctrl+C to stop.\n", len(roots), watchDebounce)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = addWatchesRecursive(watcher, event.Name)
				}
			}
			timer.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)

		case <-timer.C:
			if err := runScanAndBackup(ctx, cfg, c, log); err != nil {
				log.Error("incremental scan+backup failed", "error", err)
			}
		}
	}
}

func addWatchesRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if watchErr := watcher.Add(path); watchErr != nil {
				return nil
			}
		}
		return nil
	})
}

func runScanAndBackup(ctx context.Context, cfg *config.Config, c *cache.Cache, log *slog.Logger) error {
	s := scanner.New(c, scanner.WithLogger(log), scanner.WithCheckpointInterval(cfg.Cache.CheckpointInterval))
	if err := s.Scan(ctx, false, func(int, *int) {}); err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	repo, err := openRepository(cfg, c, store)
	if err != nil {
		return err
	}

	pipeline := backup.New(c, repo, backup.WithLogger(log), backup.WithCheckpointInterval(cfg.Cache.CheckpointInterval), backup.WithWorkers(cfg.Backup.Workers))
	if err := pipeline.Run(ctx, func(int, int) {}); err != nil {
		return fmt.Errorf("backup: %w", err)
	}

	log.Info("incremental scan+backup complete")
	return nil
}
