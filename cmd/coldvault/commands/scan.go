package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/scanner"
)

var scanOnlyNew bool

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Walk registered roots and mark changed entries dirty",
	Args:  cobra.NoArgs,
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanOnlyNew, "only-new", false, "skip re-statting already-known entries; drain only newly discovered ones")
}

func runScan(cmd *cobra.Command, args []string) error {
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

	s := scanner.New(c, scanner.WithLogger(log), scanner.WithCheckpointInterval(cfg.Cache.CheckpointInterval), scanner.WithMetrics(collectors))

	lastTotal := 0
	err = s.Scan(ctx, scanOnlyNew, func(done int, total *int) {
		if total != nil {
			lastTotal = *total
			fmt.Printf("\rscanned %d/%d", done, lastTotal)
		} else {
			fmt.Printf("\rscanned %d", done)
		}
		if tracker != nil {
			tracker.Set("scan", done, lastTotal)
		}
	})
	fmt.Println()
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Println("Scan complete.")
	return nil
}
