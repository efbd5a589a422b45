package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/coldvault/coldvault/pkg/scanner"
)

var delRootForce bool

var delRootCmd = &cobra.Command{
	Use:   "delroot PATH",
	Short: "Unregister a backup root",
	Long: `Unregister a backup root. This removes the root and every FSEntry
beneath it from the local cache, but deletes nothing from the remote
repository: objects that become unreferenced are only reclaimed the next
time "coldvault gc" runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelRoot,
}

func init() {
	delRootCmd.Flags().BoolVar(&delRootForce, "force", false, "skip the confirmation prompt")
}

func runDelRoot(cmd *cobra.Command, args []string) error {
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

	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if !delRootForce {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Remove root %s from the cache", absPath),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := scanner.New(c).DelRoot(ctx, absPath); err != nil {
		return fmt.Errorf("failed to remove root: %w", err)
	}

	fmt.Printf("Removed backup root: %s\n", absPath)
	return nil
}
