// Package lambdaenv provides shared types and initialization for Lambda handlers.
package lambdaenv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dwsmith1983/deploygate/internal/alert"
	"github.com/dwsmith1983/deploygate/internal/invoker"
	ddbledger "github.com/dwsmith1983/deploygate/internal/ledger/dynamodb"
	"github.com/dwsmith1983/deploygate/internal/orchestrator"
	"github.com/dwsmith1983/deploygate/internal/policy"
	"github.com/dwsmith1983/deploygate/internal/secret"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// DeployRequest is the input to the deploy Lambda.
type DeployRequest struct {
	Ref   string `json:"ref"`
	SHA   string `json:"sha"`
	Actor string `json:"actor,omitempty"`
}

// DeployResponse is the deploy Lambda's output.
type DeployResponse struct {
	Status string `json:"status"`
	RunID  string `json:"runId,omitempty"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Deps holds shared dependencies for Lambda handlers.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       *slog.Logger
}

var (
	depsOnce sync.Once
	deps     *Deps
	depsErr  error
)

// GetDeps initializes shared dependencies once per Lambda container.
func GetDeps() (*Deps, error) {
	depsOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		deps, depsErr = Init(ctx)
	})
	return deps, depsErr
}

// Init creates shared dependencies from environment variables.
// Reads: TABLE_NAME, AWS_REGION, SNS_TOPIC_ARN, DEPLOY_ENVIRONMENT,
// DEPLOY_ALLOWED_REFS, DEPLOY_SECRET_REFS, DEPLOY_TOOL, DEPLOY_TOOL_ARGS,
// DEPLOY_TOOL_ARTIFACT_ENV, DEPLOY_TOOL_TIMEOUT.
func Init(ctx context.Context) (*Deps, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	tableName := os.Getenv("TABLE_NAME")
	region := os.Getenv("AWS_REGION")
	if tableName == "" {
		return nil, fmt.Errorf("TABLE_NAME environment variable required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS_REGION environment variable required")
	}

	allowedRefs := splitList(os.Getenv("DEPLOY_ALLOWED_REFS"))
	if len(allowedRefs) == 0 {
		return nil, fmt.Errorf("DEPLOY_ALLOWED_REFS environment variable required")
	}
	secretRefs := splitList(os.Getenv("DEPLOY_SECRET_REFS"))
	if len(secretRefs) == 0 {
		return nil, fmt.Errorf("DEPLOY_SECRET_REFS environment variable required")
	}
	toolPath := os.Getenv("DEPLOY_TOOL")
	if toolPath == "" {
		return nil, fmt.Errorf("DEPLOY_TOOL environment variable required")
	}

	l, err := ddbledger.New(&ddbledger.Config{
		TableName:    tableName,
		Region:       region,
		RetentionTTL: envOrDefault("RETENTION_TTL", "2160h"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating DynamoDB ledger: %w", err)
	}

	store, err := secret.NewSecretsManagerStore(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("creating secret store: %w", err)
	}

	var alertFn func(context.Context, types.Alert)
	if topicARN := os.Getenv("SNS_TOPIC_ARN"); topicARN != "" {
		snsSink, err := alert.NewSNSSink(topicARN)
		if err != nil {
			return nil, fmt.Errorf("creating SNS sink: %w", err)
		}
		alertFn = alert.NewDispatcherWithSinks(snsSink).Dispatch
	} else {
		alertFn = func(_ context.Context, a types.Alert) {
			logger.Info("alert", "level", a.Level, "runId", a.RunID, "message", a.Message)
		}
	}

	timeout := 10 * time.Minute
	if d, err := time.ParseDuration(os.Getenv("DEPLOY_TOOL_TIMEOUT")); err == nil && d > 0 {
		timeout = d
	}

	o := orchestrator.New(l, store,
		policy.Policy{AllowedRefs: allowedRefs},
		orchestrator.Config{
			Environment: envOrDefault("DEPLOY_ENVIRONMENT", "prod"),
			SecretRefs:  secretRefs,
			Tool: invoker.CommandSpec{
				Path:        toolPath,
				Args:        splitList(os.Getenv("DEPLOY_TOOL_ARGS")),
				ArtifactEnv: os.Getenv("DEPLOY_TOOL_ARTIFACT_ENV"),
			},
			ToolTimeout: timeout,
		},
		orchestrator.WithAlertFunc(alertFn),
		orchestrator.WithLogger(logger),
	)

	return &Deps{Orchestrator: o, Logger: logger}, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
