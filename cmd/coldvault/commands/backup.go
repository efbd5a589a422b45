package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/backup"
	"github.com/coldvault/coldvault/pkg/repository"
)

var backupSingle bool

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Push dirty entries to the repository",
	Long: `Drains every dirty FSEntry left by the last "scan", pushing
content-addressed objects to the configured storage backend in dependency
order (children before parents). Requires a scan with no unscanned entries
remaining.`,
	Args: cobra.NoArgs,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().BoolVar(&backupSingle, "single", false, "run the backup pipeline on a single goroutine instead of the worker pool")
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	c, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer c.Close()

	tracker, collectors, stopStatusAPI, err := maybeStartStatusAPI(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopStatusAPI()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Crypto.EncryptionEnabled {
		if err := ensureRecoveryObjectUploaded(ctx, s); err != nil {
			return fmt.Errorf("upload recovery object: %w", err)
		}
	}

	repo, err := openRepository(cfg, c, s, repository.WithMetrics(collectors))
	if err != nil {
		return err
	}

	workers := cfg.Backup.Workers
	if backupSingle {
		workers = 1
	}

	pipeline := backup.New(c, repo,
		backup.WithLogger(log),
		backup.WithCheckpointInterval(cfg.Cache.CheckpointInterval),
		backup.WithWorkers(workers),
		backup.WithMetrics(collectors),
	)

	err = pipeline.Run(ctx, withProgress(tracker, "backup", func(done, total int) {
		fmt.Printf("\rbacked up %d/%d", done, total)
	}))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	fmt.Println("Backup complete.")
	return nil
}
