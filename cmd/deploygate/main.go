package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/deploygate/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "deploygate",
		Short: "Exactly-once deployment orchestrator for push events",
		Long: `Deploygate turns push events into at-most-one deployment per (ref, sha).
It evaluates a trigger policy, claims an idempotency key in the run ledger,
materializes secrets into a run-private artifact, and invokes your deploy
tool with a bounded timeout. Failed runs release the key for retry.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewRunCmd(),
		commands.NewStatusCmd(),
		commands.NewRunsCmd(),
		commands.NewEventsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
