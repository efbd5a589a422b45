// Command coldvault is the CLI entrypoint for the backup engine: init,
// addroot, delroot, listroots, scan, backup, restore, gc, watch.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/coldvault/coldvault/cmd/coldvault/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := commands.GetRootCmd()
	root.SetContext(ctx)

	if err := commands.Execute(); err != nil {
		commands.Exit("Error: %v", err)
	}
}
