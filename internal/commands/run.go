package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/deploygate/internal/config"
	"github.com/dwsmith1983/deploygate/internal/orchestrator"
	"github.com/dwsmith1983/deploygate/internal/telemetry"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var (
		ref   string
		sha   string
		actor string
	)

	cmd := &cobra.Command{
		Use:   "run --ref <ref> --sha <sha>",
		Short: "Run one deployment attempt for a push event",
		Long: `Evaluates the event against the trigger policy, claims the deploy key,
materializes secrets into a run-private artifact, and invokes the deploy tool.
A rejected trigger or a collapsed duplicate exits 0 without deploying.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDeploy(cmd, ref, sha, actor)
		},
	}

	cmd.Flags().StringVar(&ref, "ref", "", "source ref of the push event (required)")
	cmd.Flags().StringVar(&sha, "sha", "", "commit SHA of the push event (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "who or what triggered the event")
	_ = cmd.MarkFlagRequired("ref")
	_ = cmd.MarkFlagRequired("sha")
	return cmd
}

func runDeploy(cmd *cobra.Command, ref, sha, actor string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// SIGINT/SIGTERM tears down the run; the orchestrator records CANCELLED.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry != nil {
		shutdown, err := telemetry.Init(ctx, "deploygate", cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("initializing telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	o, cleanup, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := o.Run(ctx, types.EventDescriptor{SourceRef: ref, CommitSHA: sha, Actor: actor})
	if err != nil {
		return err
	}

	switch report.Status {
	case orchestrator.StatusSkipped:
		color.Yellow("Skipped: %s", report.Reason)
		return nil
	case orchestrator.StatusDuplicate:
		color.Yellow("Duplicate of run %s (outcome: %s), nothing to do", report.RunID, report.Prior.Outcome)
		return nil
	case orchestrator.StatusSucceeded:
		color.Green("Deploy succeeded (run: %s)", report.RunID)
		return nil
	case orchestrator.StatusCancelled:
		color.Yellow("Deploy cancelled (run: %s)", report.RunID)
		return fmt.Errorf("deploy cancelled")
	default:
		color.Red("Deploy failed (run: %s): %s", report.RunID, report.Reason)
		return fmt.Errorf("deploy failed: %s", report.FailureKind)
	}
}
