// Package memory implements the Ledger interface in process memory.
// Used for local mode and tests; records do not survive the process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dwsmith1983/deploygate/internal/ledger"
	"github.com/dwsmith1983/deploygate/internal/lifecycle"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// Compile-time interface satisfaction check.
var _ ledger.Ledger = (*Ledger)(nil)

// Ledger is an in-memory run ledger safe for concurrent use.
type Ledger struct {
	mu     sync.Mutex
	runs   map[string]types.RunRecord
	claims map[string]string // deploy key -> run ID
	order  []string          // run IDs in start order
	events []types.Event
	locks  map[string]time.Time // lock key -> expiry
}

// New creates an empty in-memory ledger.
func New() *Ledger {
	return &Ledger{
		runs:   make(map[string]types.RunRecord),
		claims: make(map[string]string),
		locks:  make(map[string]time.Time),
	}
}

// StartRun claims the deploy key and appends the pending record.
func (l *Ledger) StartRun(_ context.Context, run types.RunRecord) (bool, *types.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := run.Event.DeployKey()
	if prevID, ok := l.claims[key]; ok {
		prev := l.runs[prevID]
		if prev.Outcome == types.OutcomePending || prev.Outcome == types.OutcomeSucceeded {
			return false, &prev, nil
		}
	}

	l.claims[key] = run.RunID
	l.runs[run.RunID] = run
	l.order = append(l.order, run.RunID)
	return true, nil, nil
}

// FinishRun applies a terminal outcome, idempotently per run ID.
func (l *Ledger) FinishRun(_ context.Context, runID string, c ledger.Completion) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.runs[runID]
	if !ok {
		return ledger.ErrRunNotFound
	}

	if lifecycle.IsTerminal(rec.Outcome) {
		if c.Matches(&rec) {
			return nil
		}
		return ledger.ErrFinishConflict
	}
	if err := lifecycle.Transition(rec.Outcome, c.Outcome); err != nil {
		return err
	}

	now := time.Now()
	rec.Outcome = c.Outcome
	rec.ExitCode = c.ExitCode
	rec.FailureKind = c.FailureKind
	rec.FailureMessage = c.FailureMessage
	rec.FinishedAt = &now
	rec.UpdatedAt = now
	l.runs[runID] = rec
	return nil
}

// GetRun returns the record for a run ID.
func (l *Ledger) GetRun(_ context.Context, runID string) (*types.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.runs[runID]
	if !ok {
		return nil, ledger.ErrRunNotFound
	}
	return &rec, nil
}

// ListRuns returns up to limit runs, newest first.
func (l *Ledger) ListRuns(_ context.Context, limit int) ([]types.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	var runs []types.RunRecord
	for i := len(l.order) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, l.runs[l.order[i]])
	}
	return runs, nil
}

// FindByDeployKey returns the run currently holding the idempotency key.
func (l *Ledger) FindByDeployKey(_ context.Context, sourceRef, commitSHA string) (*types.RunRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := types.EventDescriptor{SourceRef: sourceRef, CommitSHA: commitSHA}.DeployKey()
	runID, ok := l.claims[key]
	if !ok {
		return nil, ledger.ErrRunNotFound
	}
	rec := l.runs[runID]
	return &rec, nil
}

// AppendEvent records an audit event.
func (l *Ledger) AppendEvent(_ context.Context, event types.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// ListEvents returns up to limit events, newest first.
func (l *Ledger) ListEvents(_ context.Context, limit int) ([]types.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var events []types.Event
	for i := len(l.events) - 1; i >= 0 && len(events) < limit; i-- {
		events = append(events, l.events[i])
	}
	return events, nil
}

// AcquireLock acquires a lock unless a live one exists.
func (l *Ledger) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if expiry, ok := l.locks[key]; ok && time.Now().Before(expiry) {
		return false, nil
	}
	l.locks[key] = time.Now().Add(ttl)
	return true, nil
}

// ReleaseLock releases a lock.
func (l *Ledger) ReleaseLock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}

// Start is a no-op.
func (l *Ledger) Start(_ context.Context) error { return nil }

// Stop is a no-op.
func (l *Ledger) Stop(_ context.Context) error { return nil }

// Ping is a no-op.
func (l *Ledger) Ping(_ context.Context) error { return nil }
