package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/deploygate/internal/config"
	"github.com/dwsmith1983/deploygate/internal/ledger"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <ref> <sha>",
		Short: "Show the run currently holding a deploy key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), args[0], args[1])
		},
	}
}

func runStatus(ctx context.Context, ref, sha string) error {
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

	rec, err := l.FindByDeployKey(ctx, ref, sha)
	if errors.Is(err, ledger.ErrRunNotFound) {
		fmt.Printf("No run holds %s@%s; the key is free.\n", ref, sha)
		return nil
	}
	if err != nil {
		return fmt.Errorf("looking up deploy key: %w", err)
	}

	printRun(*rec)
	return nil
}

func printRun(rec types.RunRecord) {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Run: %s\n", rec.RunID)
	fmt.Printf("  Ref:         %s\n", rec.Event.SourceRef)
	fmt.Printf("  SHA:         %s\n", rec.Event.CommitSHA)
	if rec.Event.Actor != "" {
		fmt.Printf("  Actor:       %s\n", rec.Event.Actor)
	}
	fmt.Printf("  Environment: %s\n", rec.Environment)
	fmt.Printf("  Outcome:     %s\n", colorOutcome(rec.Outcome))
	if rec.ExitCode != nil {
		fmt.Printf("  Exit code:   %d\n", *rec.ExitCode)
	}
	if rec.FailureKind != "" {
		fmt.Printf("  Failure:     %s (%s)\n", rec.FailureKind, rec.FailureMessage)
	}
	fmt.Printf("  Started:     %s\n", rec.StartedAt.Format(time.RFC3339))
	if rec.FinishedAt != nil {
		fmt.Printf("  Finished:    %s\n", rec.FinishedAt.Format(time.RFC3339))
	}
}

func colorOutcome(o types.Outcome) string {
	switch o {
	case types.OutcomeSucceeded:
		return color.GreenString(string(o))
	case types.OutcomeFailed:
		return color.RedString(string(o))
	case types.OutcomePending:
		return color.CyanString(string(o))
	default:
		return color.YellowString(string(o))
	}
}
