package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/scanner"
)

var addRootCmd = &cobra.Command{
	Use:   "addroot PATH",
	Short: "Register a directory or file as a backup root",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddRoot,
}

func runAddRoot(cmd *cobra.Command, args []string) error {
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

	entry, err := scanner.New(c).AddRoot(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to register root: %w", err)
	}

	fmt.Printf("Added backup root: %s\n", string(entry.Path))
	return nil
}
