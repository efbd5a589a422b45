package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/cache"
	"github.com/coldvault/coldvault/pkg/restore"
)

var (
	restoreSnapshotID int64
	restoreRootPath   string
)

var restoreCmd = &cobra.Command{
	Use:   "restore DEST",
	Short: "Materialize a snapshot onto the local filesystem",
	Long: `Restores a previously backed-up snapshot to DEST, creating it if
necessary. With no --snapshot given, the most recent snapshot is used
(for a single-root repository) or must be disambiguated with --root.`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().Int64Var(&restoreSnapshotID, "snapshot", 0, "snapshot id to restore (default: most recent)")
	restoreCmd.Flags().StringVar(&restoreRootPath, "root", "", "restore the most recent snapshot of this root path")
}

func runRestore(cmd *cobra.Command, args []string) error {
	dest := args[0]

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

	snap, err := selectSnapshot(ctx, c)
	if err != nil {
		return err
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	repo, err := openRepositoryForRead(cfg, c, s)
	if err != nil {
		return err
	}

	r := restore.New(repo, restore.WithLogger(log))
	if err := r.Restore(ctx, snap.RootID, dest); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	fmt.Printf("Restored snapshot %d (%s, taken %s) to %s\n", snap.ID, snap.Path, unixSeconds(snap.Timestamp), dest)
	return nil
}

func selectSnapshot(ctx context.Context, c *cache.Cache) (*cache.Snapshot, error) {
	if restoreSnapshotID != 0 {
		return c.GetSnapshot(ctx, restoreSnapshotID)
	}

	snapshots, err := c.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, fmt.Errorf("no snapshots exist yet; run backup first")
	}

	if restoreRootPath != "" {
		for _, s := range snapshots {
			if string(s.Path) == restoreRootPath {
				return s, nil
			}
		}
		return nil, fmt.Errorf("no snapshot found for root %s", restoreRootPath)
	}

	roots := map[string]bool{}
	for _, s := range snapshots {
		roots[string(s.Path)] = true
	}
	if len(roots) > 1 {
		return nil, fmt.Errorf("multiple roots have snapshots; specify --snapshot or --root")
	}

	return snapshots[0], nil
}
