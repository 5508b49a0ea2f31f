package main

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/deploygate/internal/invoker"
	"github.com/dwsmith1983/deploygate/internal/lambdaenv"
	"github.com/dwsmith1983/deploygate/internal/ledger/memory"
	"github.com/dwsmith1983/deploygate/internal/orchestrator"
	"github.com/dwsmith1983/deploygate/internal/policy"
	"github.com/dwsmith1983/deploygate/internal/secret"
)

func testDeps() *lambdaenv.Deps {
	o := orchestrator.New(memory.New(),
		secret.NewStaticStore(map[string]string{"db-password": "x"}),
		policy.Policy{AllowedRefs: []string{"main"}},
		orchestrator.Config{
			Environment: "prod",
			SecretRefs:  []string{"db-password"},
			Tool:        invoker.CommandSpec{Path: "/bin/sh", Args: []string{"-c", "exit 0"}},
			ToolTimeout: 30 * time.Second,
		})
	return &lambdaenv.Deps{Orchestrator: o, Logger: slog.Default()}
}

func TestHandleDeploy_MissingFields(t *testing.T) {
	resp, err := handleDeploy(context.Background(), testDeps(), lambdaenv.DeployRequest{Ref: "main"})
	require.NoError(t, err)
	assert.Equal(t, "failed", resp.Status)
	assert.Contains(t, resp.Error, "required")
}

func TestHandleDeploy_Success(t *testing.T) {
	resp, err := handleDeploy(context.Background(), testDeps(), lambdaenv.DeployRequest{Ref: "main", SHA: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "succeeded", resp.Status)
	assert.NotEmpty(t, resp.RunID)
}

func TestHandleDeploy_Rejected(t *testing.T) {
	resp, err := handleDeploy(context.Background(), testDeps(), lambdaenv.DeployRequest{Ref: "feature/x", SHA: "abc123"})
	require.NoError(t, err)
	assert.Equal(t, "skipped", resp.Status)
	assert.NotEmpty(t, resp.Reason)
	assert.Empty(t, resp.Error)
}

func TestHandleDeploy_Duplicate(t *testing.T) {
	d := testDeps()
	req := lambdaenv.DeployRequest{Ref: "main", SHA: "abc123"}

	first, err := handleDeploy(context.Background(), d, req)
	require.NoError(t, err)
	require.Equal(t, "succeeded", first.Status)

	second, err := handleDeploy(context.Background(), d, req)
	require.NoError(t, err)
	assert.Equal(t, "duplicate", second.Status)
	assert.Equal(t, first.RunID, second.RunID)
}
