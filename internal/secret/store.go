// Package secret abstracts secret retrieval for credential materialization.
package secret

import (
	"context"
	"errors"
)

// Lookup failure sentinels. Callers distinguish a missing secret from a
// denied one, but both are fatal to a materialization.
var (
	ErrNotFound     = errors.New("secret not found")
	ErrAccessDenied = errors.New("secret access denied")
)

// Store is the secret retrieval interface consumed by the materializer.
type Store interface {
	// Get returns the secret value for name. The returned bytes must not be
	// persisted beyond the run's lifetime.
	Get(ctx context.Context, name string) ([]byte, error)
}
