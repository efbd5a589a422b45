package commands

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/internal/bytesize"
	"github.com/coldvault/coldvault/pkg/gc"
)

var gcForce bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Reclaim objects no longer reachable from any snapshot",
	Long: `Builds a bloom filter over every object reachable from a snapshot
and sweeps the repository for objects that are provably not in it,
deleting them from both the remote store and the local cache.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "skip the confirmation prompt")
}

func runGC(cmd *cobra.Command, args []string) error {
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

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	if !gcForce {
		prompt := promptui.Prompt{
			Label:     "This will permanently delete unreferenced objects. Continue",
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Println("Aborted.")
			return nil
		}
	}

	tracker, collectors, stopStatusAPI, err := maybeStartStatusAPI(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopStatusAPI()

	collector := gc.New(c, s, gc.WithLogger(log), gc.WithMetrics(collectors))
	stats, err := collector.Run(ctx, func(removed int, bytes int64) {
		fmt.Printf("\rremoved %d objects (%s)", removed, bytesize.ByteSize(bytes))
		if tracker != nil {
			tracker.Set("gc", removed, 0)
		}
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("gc failed: %w", err)
	}

	fmt.Printf("GC complete: removed %d objects, reclaimed %s.\n", stats.ObjectsRemoved, bytesize.ByteSize(stats.BytesRemoved))
	return nil
}
