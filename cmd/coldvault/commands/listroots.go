package commands

import (
	"context"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var listRootsCmd = &cobra.Command{
	Use:   "listroots",
	Short: "List registered backup roots",
	Args:  cobra.NoArgs,
	RunE:  runListRoots,
}

func runListRoots(cmd *cobra.Command, args []string) error {
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

	roots, err := c.Roots(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Path", "Backed up"})
	for _, r := range roots {
		status := "pending"
		if r.ObjID != nil {
			status = "yes"
		}
		table.Append([]string{string(r.Path), status})
	}
	table.Render()
	return nil
}
