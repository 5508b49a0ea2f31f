// deploy Lambda runs one deployment attempt for a webhook push event.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/dwsmith1983/deploygate/internal/lambdaenv"
	"github.com/dwsmith1983/deploygate/internal/orchestrator"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// handleDeploy runs the orchestrator for one push event. A rejected trigger
// or a collapsed duplicate is a successful no-op, not a handler error.
func handleDeploy(ctx context.Context, d *lambdaenv.Deps, req lambdaenv.DeployRequest) (lambdaenv.DeployResponse, error) {
	if req.Ref == "" || req.SHA == "" {
		return lambdaenv.DeployResponse{
			Status: "failed",
			Error:  "ref and sha are required",
		}, nil
	}

	report, err := d.Orchestrator.Run(ctx, types.EventDescriptor{
		SourceRef: req.Ref,
		CommitSHA: req.SHA,
		Actor:     req.Actor,
	})
	if err != nil {
		return lambdaenv.DeployResponse{
			Status: "failed",
			Error:  fmt.Sprintf("running deploy: %v", err),
		}, nil
	}

	resp := lambdaenv.DeployResponse{
		Status: string(report.Status),
		RunID:  report.RunID,
		Reason: report.Reason,
	}
	if report.Status == orchestrator.StatusFailed {
		resp.Error = report.Reason
	}
	return resp, nil
}

func handler(ctx context.Context, req lambdaenv.DeployRequest) (lambdaenv.DeployResponse, error) {
	d, err := lambdaenv.GetDeps()
	if err != nil {
		return lambdaenv.DeployResponse{}, err
	}
	return handleDeploy(ctx, d, req)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
