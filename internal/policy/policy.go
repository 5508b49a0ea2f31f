// Package policy decides whether an incoming event should start a deployment run.
package policy

import (
	"fmt"

	"github.com/dwsmith1983/deploygate/pkg/types"
)

// Policy is the operator-supplied trigger policy.
type Policy struct {
	AllowedRefs []string
}

// Decision is the outcome of evaluating an event against a policy.
// A reject is not an error; it is the normal "not applicable" path.
type Decision struct {
	Accept bool
	Reason string
}

// Evaluate accepts iff the event's source ref is in the allowed set.
// Pure function: no side effects, no I/O.
func Evaluate(event types.EventDescriptor, p Policy) Decision {
	if event.SourceRef == "" {
		return Decision{Reason: "event has no source ref"}
	}
	for _, ref := range p.AllowedRefs {
		if ref == event.SourceRef {
			return Decision{Accept: true, Reason: fmt.Sprintf("ref %q is allowed", event.SourceRef)}
		}
	}
	return Decision{Reason: fmt.Sprintf("ref %q is not in the allowed set", event.SourceRef)}
}
