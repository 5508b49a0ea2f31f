// Package lifecycle implements the deployment run state machine.
package lifecycle

import (
	"fmt"

	"github.com/dwsmith1983/deploygate/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.Outcome][]types.Outcome{
	types.OutcomePending:   {types.OutcomeSucceeded, types.OutcomeFailed, types.OutcomeCancelled},
	types.OutcomeSucceeded: {},
	types.OutcomeFailed:    {},
	types.OutcomeCancelled: {},
}

// CanTransition checks if transitioning from one outcome to another is valid.
func CanTransition(from, to types.Outcome) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, o := range allowed {
		if o == to {
			return true
		}
	}
	return false
}

// Transition validates the transition, or returns an error if it is invalid.
func Transition(from, to types.Outcome) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the outcome is a terminal (final) state.
func IsTerminal(outcome types.Outcome) bool {
	return outcome == types.OutcomeSucceeded || outcome == types.OutcomeFailed || outcome == types.OutcomeCancelled
}
