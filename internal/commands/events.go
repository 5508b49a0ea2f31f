package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/deploygate/internal/config"
)

// NewEventsCmd creates the events command.
func NewEventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the audit event trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvents(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of events to show")
	return cmd
}

func runEvents(ctx context.Context, limit int) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	l, cleanup, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	events, err := l.ListEvents(ctx, limit)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Println("Audit Events (newest first):")
	for _, ev := range events {
		ref := ev.SourceRef
		if ev.CommitSHA != "" {
			ref = ref + "@" + ev.CommitSHA
		}
		fmt.Printf("  %s  %-22s %-20s %s %s\n",
			ev.Timestamp.Format(time.RFC3339), ev.Kind, ref, ev.RunID, ev.Message)
	}
	return nil
}
