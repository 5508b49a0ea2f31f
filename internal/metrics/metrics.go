// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	RunsStarted       = expvar.NewInt("runs_started")
	RunsSucceeded     = expvar.NewInt("runs_succeeded")
	RunsFailed        = expvar.NewInt("runs_failed")
	RunsCancelled     = expvar.NewInt("runs_cancelled")
	RunsSkipped       = expvar.NewInt("runs_skipped")
	RunsDuplicate     = expvar.NewInt("runs_duplicate")
	SecretsFetched    = expvar.NewInt("secrets_fetched")
	SecretFetchErrors = expvar.NewInt("secret_fetch_errors")
	ToolTimeouts      = expvar.NewInt("tool_timeouts")
	AlertsDispatched  = expvar.NewInt("alerts_dispatched")
	AlertsFailed      = expvar.NewInt("alerts_failed")
)
