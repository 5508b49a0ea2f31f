// Package commands implements the CLI subcommands for the deploygate binary.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dwsmith1983/deploygate/internal/alert"
	"github.com/dwsmith1983/deploygate/internal/invoker"
	"github.com/dwsmith1983/deploygate/internal/ledger"
	ddbledger "github.com/dwsmith1983/deploygate/internal/ledger/dynamodb"
	"github.com/dwsmith1983/deploygate/internal/ledger/memory"
	"github.com/dwsmith1983/deploygate/internal/orchestrator"
	"github.com/dwsmith1983/deploygate/internal/policy"
	"github.com/dwsmith1983/deploygate/internal/secret"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// defaultToolTimeout applies when tool.timeoutSeconds is unset.
const defaultToolTimeout = 10 * time.Minute

// newLedger creates the configured run ledger.
func newLedger(cfg *types.ProjectConfig) (ledger.Ledger, error) {
	switch cfg.Ledger {
	case "memory":
		return memory.New(), nil
	case "dynamodb":
		dc, ok := cfg.DynamoDB.(*ddbledger.Config)
		if !ok || dc == nil {
			return nil, fmt.Errorf("dynamodb config is required when ledger is dynamodb")
		}
		return ddbledger.New(dc)
	default:
		return nil, fmt.Errorf("unsupported ledger: %s", cfg.Ledger)
	}
}

// newStore creates the configured secret store.
func newStore(ctx context.Context, cfg *types.ProjectConfig) (secret.Store, error) {
	switch cfg.Secrets.Source {
	case "aws":
		return secret.NewSecretsManagerStore(ctx, cfg.Secrets.Region)
	case "env":
		return secret.NewEnvStore(cfg.Secrets.Prefix), nil
	default:
		return nil, fmt.Errorf("unsupported secret source: %s", cfg.Secrets.Source)
	}
}

// toolSpec translates the tool config into an invoker command spec.
func toolSpec(cfg *types.ProjectConfig) (invoker.CommandSpec, time.Duration) {
	timeout := defaultToolTimeout
	if cfg.Tool.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.Tool.TimeoutSeconds) * time.Second
	}
	return invoker.CommandSpec{
		Path:        cfg.Tool.Command,
		Args:        cfg.Tool.Args,
		Env:         cfg.Tool.Env,
		ArtifactEnv: cfg.Tool.ArtifactEnv,
		Dir:         cfg.Tool.WorkDir,
	}, timeout
}

// buildOrchestrator wires the full run path from project config. The cleanup
// func stops the ledger; callers must run it on every exit path.
func buildOrchestrator(ctx context.Context, cfg *types.ProjectConfig) (*orchestrator.Orchestrator, func(), error) {
	l, err := newLedger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ledger: %w", err)
	}
	if err := l.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to ledger: %w", err)
	}
	cleanup := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = l.Stop(sctx)
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating secret store: %w", err)
	}

	dispatcher, err := alert.NewDispatcher(cfg.Alerts)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("creating alert dispatcher: %w", err)
	}

	spec, timeout := toolSpec(cfg)
	o := orchestrator.New(l, store,
		policy.Policy{AllowedRefs: cfg.Policy.AllowedRefs},
		orchestrator.Config{
			Environment: cfg.Environment,
			SecretRefs:  cfg.Secrets.Refs,
			Tool:        spec,
			ToolTimeout: timeout,
		},
		orchestrator.WithAlertFunc(dispatcher.Dispatch),
	)
	return o, cleanup, nil
}

// openLedger loads config and connects the ledger for read-only commands.
func openLedger(ctx context.Context, cfg *types.ProjectConfig) (ledger.Ledger, func(), error) {
	l, err := newLedger(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating ledger: %w", err)
	}
	if err := l.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("connecting to ledger: %w", err)
	}
	return l, func() { _ = l.Stop(ctx) }, nil
}
