// Package ledgertest provides shared conformance tests for ledger.Ledger
// implementations. Call RunAll from a test function to verify a backend
// satisfies the full behavioral contract.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/deploygate/internal/ledger"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// Factory returns a fresh, empty ledger for one subtest.
type Factory func(t *testing.T) ledger.Ledger

// RunAll runs the complete ledger conformance suite as subtests.
func RunAll(t *testing.T, newLedger Factory) {
	t.Helper()

	t.Run("StartRunClaims", func(t *testing.T) { TestStartRunClaims(t, newLedger(t)) })
	t.Run("DuplicateClaimPending", func(t *testing.T) { TestDuplicateClaimPending(t, newLedger(t)) })
	t.Run("DuplicateClaimSucceeded", func(t *testing.T) { TestDuplicateClaimSucceeded(t, newLedger(t)) })
	t.Run("ReclaimAfterFailure", func(t *testing.T) { TestReclaimAfterFailure(t, newLedger(t)) })
	t.Run("ConcurrentClaim", func(t *testing.T) { TestConcurrentClaim(t, newLedger(t)) })
	t.Run("FinishIdempotent", func(t *testing.T) { TestFinishIdempotent(t, newLedger(t)) })
	t.Run("FinishConflict", func(t *testing.T) { TestFinishConflict(t, newLedger(t)) })
	t.Run("FinishUnknownRun", func(t *testing.T) { TestFinishUnknownRun(t, newLedger(t)) })
	t.Run("ListRunsNewestFirst", func(t *testing.T) { TestListRunsNewestFirst(t, newLedger(t)) })
	t.Run("FindByDeployKey", func(t *testing.T) { TestFindByDeployKey(t, newLedger(t)) })
	t.Run("EventAppendAndList", func(t *testing.T) { TestEventAppendAndList(t, newLedger(t)) })
	t.Run("Locking", func(t *testing.T) { TestLocking(t, newLedger(t)) })
	t.Run("LockExpiry", func(t *testing.T) { TestLockExpiry(t, newLedger(t)) })
}

func newRun(runID, ref, sha string) types.RunRecord {
	now := time.Now().UTC()
	return types.RunRecord{
		RunID:       runID,
		Event:       types.EventDescriptor{SourceRef: ref, CommitSHA: sha, Actor: "ci"},
		Environment: "prod",
		Outcome:     types.OutcomePending,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

func intPtr(n int) *int { return &n }

// TestStartRunClaims verifies a fresh key is claimable and readable back.
func TestStartRunClaims(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	claimed, existing, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Nil(t, existing)

	rec, err := l.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomePending, rec.Outcome)
	assert.Equal(t, "main", rec.Event.SourceRef)
}

// TestDuplicateClaimPending verifies an in-flight claim blocks a second run.
func TestDuplicateClaimPending(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	claimed, _, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, existing, err := l.StartRun(ctx, newRun("run-2", "main", "abc123"))
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.Equal(t, "run-1", existing.RunID)
	assert.Equal(t, types.OutcomePending, existing.Outcome)
}

// TestDuplicateClaimSucceeded verifies a completed deploy stays collapsed.
func TestDuplicateClaimSucceeded(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	_, _, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(ctx, "run-1", ledger.Completion{
		Outcome: types.OutcomeSucceeded, ExitCode: intPtr(0),
	}))

	claimed, existing, err := l.StartRun(ctx, newRun("run-2", "main", "abc123"))
	require.NoError(t, err)
	assert.False(t, claimed)
	require.NotNil(t, existing)
	assert.Equal(t, types.OutcomeSucceeded, existing.Outcome)
}

// TestReclaimAfterFailure verifies a failed run releases the deploy key.
func TestReclaimAfterFailure(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	_, _, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(ctx, "run-1", ledger.Completion{
		Outcome: types.OutcomeFailed, ExitCode: intPtr(1), FailureKind: types.FailureToolDeploy,
	}))

	claimed, _, err := l.StartRun(ctx, newRun("run-2", "main", "abc123"))
	require.NoError(t, err)
	assert.True(t, claimed)
}

// TestConcurrentClaim verifies exactly one of N concurrent starts wins.
func TestConcurrentClaim(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()
	const n = 8

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			claimed, _, err := l.StartRun(ctx, newRun(runID(i), "main", "abc123"))
			assert.NoError(t, err)
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func runID(i int) string {
	return "run-" + string(rune('a'+i))
}

// TestFinishIdempotent verifies a repeated identical finish is a no-op.
func TestFinishIdempotent(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	_, _, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)

	c := ledger.Completion{Outcome: types.OutcomeSucceeded, ExitCode: intPtr(0)}
	require.NoError(t, l.FinishRun(ctx, "run-1", c))
	require.NoError(t, l.FinishRun(ctx, "run-1", c))

	rec, err := l.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSucceeded, rec.Outcome)
	require.NotNil(t, rec.FinishedAt)
}

// TestFinishConflict verifies conflicting completions fail consistently.
func TestFinishConflict(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	_, _, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)
	require.NoError(t, l.FinishRun(ctx, "run-1", ledger.Completion{
		Outcome: types.OutcomeSucceeded, ExitCode: intPtr(0),
	}))

	err = l.FinishRun(ctx, "run-1", ledger.Completion{
		Outcome: types.OutcomeFailed, ExitCode: intPtr(2), FailureKind: types.FailureToolDeploy,
	})
	assert.ErrorIs(t, err, ledger.ErrFinishConflict)

	// The recorded outcome must be unchanged.
	rec, err := l.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, types.OutcomeSucceeded, rec.Outcome)
}

// TestFinishUnknownRun verifies finishing a nonexistent run fails.
func TestFinishUnknownRun(t *testing.T, l ledger.Ledger) {
	err := l.FinishRun(context.Background(), "no-such-run", ledger.Completion{
		Outcome: types.OutcomeSucceeded, ExitCode: intPtr(0),
	})
	assert.ErrorIs(t, err, ledger.ErrRunNotFound)
}

// TestListRunsNewestFirst verifies list ordering and limit.
func TestListRunsNewestFirst(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	for i, sha := range []string{"aaa111", "bbb222", "ccc333"} {
		run := newRun("run-"+sha, "main", sha)
		run.StartedAt = run.StartedAt.Add(time.Duration(i) * time.Second)
		_, _, err := l.StartRun(ctx, run)
		require.NoError(t, err)
	}

	runs, err := l.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-ccc333", runs[0].RunID)
	assert.Equal(t, "run-bbb222", runs[1].RunID)
}

// TestFindByDeployKey verifies the secondary index on (ref, sha).
func TestFindByDeployKey(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	_, _, err := l.StartRun(ctx, newRun("run-1", "main", "abc123"))
	require.NoError(t, err)

	rec, err := l.FindByDeployKey(ctx, "main", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "run-1", rec.RunID)

	_, err = l.FindByDeployKey(ctx, "main", "fff999")
	assert.ErrorIs(t, err, ledger.ErrRunNotFound)
}

// TestEventAppendAndList verifies the append-only audit trail.
func TestEventAppendAndList(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	base := time.Now().UTC()
	kinds := []types.EventKind{types.EventRunStarted, types.EventToolInvoked, types.EventRunFinished}
	for i, kind := range kinds {
		require.NoError(t, l.AppendEvent(ctx, types.Event{
			Kind:      kind,
			RunID:     "run-1",
			SourceRef: "main",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := l.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, types.EventRunFinished, events[0].Kind)
	assert.Equal(t, types.EventRunStarted, events[2].Kind)
}

// TestLocking verifies mutual exclusion.
func TestLocking(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	ok, err := l.AcquireLock(ctx, "deploy", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.AcquireLock(ctx, "deploy", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.ReleaseLock(ctx, "deploy"))

	ok, err = l.AcquireLock(ctx, "deploy", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestLockExpiry verifies an expired lock is re-acquirable.
func TestLockExpiry(t *testing.T, l ledger.Ledger) {
	ctx := context.Background()

	ok, err := l.AcquireLock(ctx, "deploy", 1*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// TTLs compare in whole epoch seconds; sleep past the next boundary.
	time.Sleep(2100 * time.Millisecond)

	ok, err = l.AcquireLock(ctx, "deploy", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
