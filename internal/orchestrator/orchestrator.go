// Package orchestrator coordinates one deployment run end to end: trigger
// evaluation, idempotency claim, credential materialization, tool invocation,
// and ledger completion.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/deploygate/internal/credential"
	"github.com/dwsmith1983/deploygate/internal/invoker"
	"github.com/dwsmith1983/deploygate/internal/ledger"
	"github.com/dwsmith1983/deploygate/internal/metrics"
	"github.com/dwsmith1983/deploygate/internal/policy"
	"github.com/dwsmith1983/deploygate/internal/secret"
	"github.com/dwsmith1983/deploygate/pkg/types"
)

// Status summarizes how a Run call resolved. Skipped and Duplicate are
// successful no-ops, not failures.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusDuplicate Status = "duplicate"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Report is the caller-facing summary of one Run call.
type Report struct {
	Status      Status
	RunID       string
	Reason      string
	ExitCode    *int
	FailureKind types.FailureKind
	Prior       *types.RunRecord // set for duplicates: the run holding the key
}

// Config carries the per-environment deployment settings the orchestrator
// needs beyond its collaborators.
type Config struct {
	Environment string
	SecretRefs  []string
	Tool        invoker.CommandSpec
	ToolTimeout time.Duration
}

// Orchestrator runs deployments. It owns no goroutines; every Run call is
// synchronous and bounded by its context.
type Orchestrator struct {
	ledger  ledger.Ledger
	store   secret.Store
	policy  policy.Policy
	cfg     Config
	alertFn func(context.Context, types.Alert)
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithAlertFunc sets the alert callback fired on run failures.
func WithAlertFunc(fn func(context.Context, types.Alert)) Option {
	return func(o *Orchestrator) { o.alertFn = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator.
func New(l ledger.Ledger, store secret.Store, pol policy.Policy, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ledger: l,
		store:  store,
		policy: pol,
		cfg:    cfg,
		logger: slog.Default(),
		tracer: otel.Tracer("deploygate/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one deployment attempt for the event. The returned error is
// reserved for infrastructure problems (ledger unreachable); a rejected
// trigger, a duplicate, or a failed deploy all resolve into the Report.
func (o *Orchestrator) Run(ctx context.Context, event types.EventDescriptor) (*Report, error) {
	ctx, span := o.tracer.Start(ctx, "deploy.run", trace.WithAttributes(
		attribute.String("deploy.ref", event.SourceRef),
		attribute.String("deploy.sha", event.CommitSHA),
	))
	defer span.End()

	report, err := o.run(ctx, event)
	if report != nil {
		span.SetAttributes(attribute.String("deploy.status", string(report.Status)))
	}
	return report, err
}

func (o *Orchestrator) run(ctx context.Context, event types.EventDescriptor) (*Report, error) {
	log := o.logger.With("ref", event.SourceRef, "sha", event.CommitSHA)

	decision := policy.Evaluate(event, o.policy)
	if !decision.Accept {
		log.Info("trigger rejected", "reason", decision.Reason)
		metrics.RunsSkipped.Add(1)
		o.appendEvent(ctx, types.Event{
			Kind:      types.EventTriggerRejected,
			SourceRef: event.SourceRef,
			CommitSHA: event.CommitSHA,
			Message:   decision.Reason,
		})
		return &Report{Status: StatusSkipped, Reason: decision.Reason}, nil
	}

	runID := ulid.Make().String()
	now := time.Now().UTC()
	rec := types.RunRecord{
		RunID:       runID,
		Event:       event,
		Environment: o.cfg.Environment,
		Outcome:     types.OutcomePending,
		StartedAt:   now,
		UpdatedAt:   now,
	}

	claimed, existing, err := o.ledger.StartRun(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("claiming deploy key %q: %w", event.DeployKey(), err)
	}
	if !claimed {
		log.Info("duplicate event collapsed", "holderRunId", existing.RunID, "holderOutcome", existing.Outcome)
		metrics.RunsDuplicate.Add(1)
		o.appendEvent(ctx, types.Event{
			Kind:      types.EventRunDuplicate,
			RunID:     existing.RunID,
			SourceRef: event.SourceRef,
			CommitSHA: event.CommitSHA,
			Message:   fmt.Sprintf("deploy key already held with outcome %s", existing.Outcome),
		})
		return &Report{Status: StatusDuplicate, RunID: existing.RunID, Prior: existing}, nil
	}

	log = log.With("runId", runID)
	log.Info("run started", "environment", o.cfg.Environment)
	metrics.RunsStarted.Add(1)
	o.appendEvent(ctx, types.Event{
		Kind:      types.EventRunStarted,
		RunID:     runID,
		SourceRef: event.SourceRef,
		CommitSHA: event.CommitSHA,
	})

	artifact, err := credential.Materialize(ctx, o.cfg.Environment, o.cfg.SecretRefs, o.store)
	if err != nil {
		if isCancellation(err) {
			return o.cancelRun(ctx, log, runID, event, "cancelled while materializing credentials")
		}
		metrics.SecretFetchErrors.Add(1)
		return o.failRun(ctx, log, runID, event, nil, classifyMaterializeFailure(err), err.Error())
	}
	defer artifact.Release()
	metrics.SecretsFetched.Add(int64(len(o.cfg.SecretRefs)))
	o.appendEvent(ctx, types.Event{
		Kind:      types.EventSecretsMaterialized,
		RunID:     runID,
		SourceRef: event.SourceRef,
		CommitSHA: event.CommitSHA,
		Details:   map[string]interface{}{"secretCount": len(o.cfg.SecretRefs)},
	})

	res, invokeErr := invoker.Invoke(ctx, o.cfg.Tool, artifact.Path(), o.cfg.ToolTimeout)
	if res != nil {
		o.appendEvent(ctx, types.Event{
			Kind:      types.EventToolInvoked,
			RunID:     runID,
			SourceRef: event.SourceRef,
			CommitSHA: event.CommitSHA,
			Details: map[string]interface{}{
				"exitCode":   res.ExitCode,
				"durationMs": res.Duration.Milliseconds(),
				"timedOut":   res.TimedOut,
			},
		})
	}

	switch {
	case invokeErr == nil && res.ExitCode == 0:
		return o.succeedRun(ctx, log, runID, event, res)
	case invokeErr == nil:
		msg := fmt.Sprintf("deploy tool exited %d", res.ExitCode)
		return o.failRun(ctx, log, runID, event, &res.ExitCode, types.FailureToolDeploy, msg)
	case isCancellation(invokeErr):
		return o.cancelRun(ctx, log, runID, event, "cancelled while the deploy tool was running")
	default:
		kind := classifyInvokeFailure(invokeErr)
		if kind == types.FailureToolTimeout {
			metrics.ToolTimeouts.Add(1)
			code := invoker.TimeoutExitCode
			return o.failRun(ctx, log, runID, event, &code, kind, invokeErr.Error())
		}
		return o.failRun(ctx, log, runID, event, nil, kind, invokeErr.Error())
	}
}

func (o *Orchestrator) succeedRun(ctx context.Context, log *slog.Logger, runID string, event types.EventDescriptor, res *invoker.Result) (*Report, error) {
	code := res.ExitCode
	if err := o.ledger.FinishRun(ctx, runID, ledger.Completion{
		Outcome:  types.OutcomeSucceeded,
		ExitCode: &code,
	}); err != nil {
		return nil, fmt.Errorf("recording success for run %s: %w", runID, err)
	}

	log.Info("run succeeded", "durationMs", res.Duration.Milliseconds())
	metrics.RunsSucceeded.Add(1)
	o.appendEvent(ctx, types.Event{
		Kind:      types.EventRunFinished,
		RunID:     runID,
		SourceRef: event.SourceRef,
		CommitSHA: event.CommitSHA,
		Message:   string(types.OutcomeSucceeded),
	})
	return &Report{Status: StatusSucceeded, RunID: runID, ExitCode: &code}, nil
}

func (o *Orchestrator) failRun(ctx context.Context, log *slog.Logger, runID string, event types.EventDescriptor, exitCode *int, kind types.FailureKind, msg string) (*Report, error) {
	if err := o.ledger.FinishRun(ctx, runID, ledger.Completion{
		Outcome:        types.OutcomeFailed,
		ExitCode:       exitCode,
		FailureKind:    kind,
		FailureMessage: msg,
	}); err != nil {
		return nil, fmt.Errorf("recording failure for run %s: %w", runID, err)
	}

	log.Error("run failed", "failureKind", string(kind), "reason", msg)
	metrics.RunsFailed.Add(1)
	o.appendEvent(ctx, types.Event{
		Kind:      types.EventRunFinished,
		RunID:     runID,
		SourceRef: event.SourceRef,
		CommitSHA: event.CommitSHA,
		Message:   string(types.OutcomeFailed),
		Details:   map[string]interface{}{"failureKind": string(kind)},
	})
	o.fireAlert(ctx, types.Alert{
		Level:     types.AlertLevelError,
		RunID:     runID,
		SourceRef: event.SourceRef,
		Message:   fmt.Sprintf("deploy of %s failed: %s", event.DeployKey(), msg),
		Details:   map[string]interface{}{"failureKind": string(kind)},
		Timestamp: time.Now().UTC(),
	})

	return &Report{Status: StatusFailed, RunID: runID, Reason: msg, ExitCode: exitCode, FailureKind: kind}, nil
}

// cancelRun records a torn-down run. The ledger write deliberately uses a
// fresh context; the run's own context is already dead.
func (o *Orchestrator) cancelRun(ctx context.Context, log *slog.Logger, runID string, event types.EventDescriptor, msg string) (*Report, error) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := o.ledger.FinishRun(fctx, runID, ledger.Completion{
		Outcome:        types.OutcomeCancelled,
		FailureMessage: msg,
	}); err != nil {
		return nil, fmt.Errorf("recording cancellation for run %s: %w", runID, err)
	}

	log.Warn("run cancelled", "reason", msg)
	metrics.RunsCancelled.Add(1)
	o.appendEvent(fctx, types.Event{
		Kind:      types.EventRunCancelled,
		RunID:     runID,
		SourceRef: event.SourceRef,
		CommitSHA: event.CommitSHA,
		Message:   msg,
	})
	return &Report{Status: StatusCancelled, RunID: runID, Reason: msg}, nil
}

// appendEvent records an audit event. Audit is best-effort; a write failure
// never changes the run's outcome.
func (o *Orchestrator) appendEvent(ctx context.Context, ev types.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := o.ledger.AppendEvent(ctx, ev); err != nil {
		o.logger.Warn("audit event write failed", "kind", string(ev.Kind), "error", err)
	}
}

func (o *Orchestrator) fireAlert(ctx context.Context, alert types.Alert) {
	if o.alertFn != nil {
		o.alertFn(ctx, alert)
	}
}
