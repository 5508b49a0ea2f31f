// Package types defines the public domain types for the deploygate deployment orchestrator.
package types

import "time"

// EventDescriptor identifies a push event that may start a deployment run.
// It is created by the external trigger source and consumed once.
type EventDescriptor struct {
	SourceRef string `json:"sourceRef"`
	CommitSHA string `json:"commitSha"`
	Actor     string `json:"actor,omitempty"`
}

// DeployKey returns the idempotency key for this event. Two events with the
// same key describe the same deployment and must collapse into one run.
func (e EventDescriptor) DeployKey() string {
	return e.SourceRef + "@" + e.CommitSHA
}

// Outcome represents the lifecycle state of a deployment run.
type Outcome string

// Outcome values. Pending is the only non-terminal state.
const (
	OutcomePending   Outcome = "PENDING"
	OutcomeSucceeded Outcome = "SUCCEEDED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeCancelled Outcome = "CANCELLED"
)

// FailureKind classifies why a deployment run failed.
type FailureKind string

// FailureKind values distinguish "the deploy tool rejected the deploy" from
// "the deploy tool could not run" and from orchestrator-side failures.
const (
	FailureSecretUnavailable FailureKind = "SECRET_UNAVAILABLE"
	FailureArtifactWrite     FailureKind = "ARTIFACT_WRITE_FAILED"
	FailureToolSpawn         FailureKind = "TOOL_SPAWN_FAILED"
	FailureToolDeploy        FailureKind = "TOOL_DEPLOY_FAILED"
	FailureToolTimeout       FailureKind = "TOOL_TIMEOUT"
)

// RunRecord is the ledger's record of one deployment attempt. It is created
// at run start with OutcomePending and mutated exactly once at completion.
type RunRecord struct {
	RunID          string          `json:"runId"`
	Event          EventDescriptor `json:"event"`
	Environment    string          `json:"environment,omitempty"`
	Outcome        Outcome         `json:"outcome"`
	ExitCode       *int            `json:"exitCode,omitempty"`
	FailureKind    FailureKind     `json:"failureKind,omitempty"`
	FailureMessage string          `json:"failureMessage,omitempty"`
	StartedAt      time.Time       `json:"startedAt"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// EventKind classifies the type of audit event.
type EventKind string

// EventKind values enumerate the categories of recorded audit events.
const (
	EventRunStarted          EventKind = "RUN_STARTED"
	EventTriggerRejected     EventKind = "TRIGGER_REJECTED"
	EventRunDuplicate        EventKind = "RUN_DUPLICATE"
	EventSecretsMaterialized EventKind = "SECRETS_MATERIALIZED"
	EventToolInvoked         EventKind = "TOOL_INVOKED"
	EventRunFinished         EventKind = "RUN_FINISHED"
	EventRunCancelled        EventKind = "RUN_CANCELLED"
)

// Event is an append-only audit log entry recording what happened and when.
// Details never contain secret values.
type Event struct {
	Kind      EventKind              `json:"kind"`
	RunID     string                 `json:"runId,omitempty"`
	SourceRef string                 `json:"sourceRef,omitempty"`
	CommitSHA string                 `json:"commitSha,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
)

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)

// Alert represents an alert event to be dispatched.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	RunID     string                 `json:"runId,omitempty"`
	SourceRef string                 `json:"sourceRef,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
}
