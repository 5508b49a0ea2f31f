package orchestrator

import (
	"context"
	"errors"

	"github.com/dwsmith1983/deploygate/internal/credential"
	"github.com/dwsmith1983/deploygate/internal/invoker"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// classifyMaterializeFailure maps a materialization error to a failure kind.
// A filesystem problem building the artifact is distinct from a secret the
// store could not serve.
func classifyMaterializeFailure(err error) types.FailureKind {
	var we *credential.WriteError
	if errors.As(err, &we) {
		return types.FailureArtifactWrite
	}
	return types.FailureSecretUnavailable
}

// classifyInvokeFailure maps an invocation error to a failure kind.
func classifyInvokeFailure(err error) types.FailureKind {
	var se *invoker.SpawnError
	switch {
	case errors.Is(err, invoker.ErrTimeout):
		return types.FailureToolTimeout
	case errors.As(err, &se):
		return types.FailureToolSpawn
	default:
		return types.FailureToolSpawn
	}
}

// isCancellation reports whether err is the run's own context being torn down
// rather than a failure of the deployment.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
