// Package ledger defines the durable run-ledger interface for deploygate.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/dwsmith1983/deploygate/pkg/types"
)

// Sentinel errors shared by all backends.
var (
	ErrRunNotFound = errors.New("run not found")

	// ErrFinishConflict reports a FinishRun whose arguments disagree with an
	// already-recorded completion. A repeated finish with identical arguments
	// is a no-op, never an error.
	ErrFinishConflict = errors.New("finish conflicts with recorded completion")
)

// Completion carries the terminal state applied by FinishRun.
type Completion struct {
	Outcome        types.Outcome
	ExitCode       *int
	FailureKind    types.FailureKind
	FailureMessage string
}

// Matches reports whether a recorded terminal run agrees with this
// completion. Used by backends to make FinishRun idempotent.
func (c Completion) Matches(rec *types.RunRecord) bool {
	if rec.Outcome != c.Outcome || rec.FailureKind != c.FailureKind {
		return false
	}
	if (rec.ExitCode == nil) != (c.ExitCode == nil) {
		return false
	}
	if rec.ExitCode != nil && *rec.ExitCode != *c.ExitCode {
		return false
	}
	return true
}

// Ledger is the storage backend interface. The ledger is the single source
// of truth for "was this ref already deployed at this commit".
type Ledger interface {
	// StartRun atomically claims the run's deploy key and appends the record
	// with outcome pending. If a pending or succeeded run already holds the
	// key, the claim fails and the existing record is returned so the caller
	// can short-circuit. A failed or cancelled prior run releases the key.
	StartRun(ctx context.Context, run types.RunRecord) (claimed bool, existing *types.RunRecord, err error)

	// FinishRun applies the terminal outcome for a run. Idempotent per
	// run ID; conflicting completions fail with ErrFinishConflict.
	FinishRun(ctx context.Context, runID string, c Completion) error

	GetRun(ctx context.Context, runID string) (*types.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]types.RunRecord, error)
	FindByDeployKey(ctx context.Context, sourceRef, commitSHA string) (*types.RunRecord, error)

	// Event log — append-only audit trail
	AppendEvent(ctx context.Context, event types.Event) error
	ListEvents(ctx context.Context, limit int) ([]types.Event, error)

	// Distributed locking for external coordination
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error

	// Lifecycle
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}
