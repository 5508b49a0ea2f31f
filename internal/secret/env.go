package secret

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultEnvPrefix is the variable name prefix for the env-backed store.
const DefaultEnvPrefix = "DEPLOYGATE_SECRET_"

var _ Store = (*EnvStore)(nil)

// EnvStore resolves secrets from environment variables. A ref named
// "db-password" maps to DEPLOYGATE_SECRET_DB_PASSWORD. Intended for local
// runs and CI runners that inject secrets through the environment.
type EnvStore struct {
	Prefix string
}

// NewEnvStore creates an env-backed store with the given prefix, or the
// default when empty.
func NewEnvStore(prefix string) *EnvStore {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &EnvStore{Prefix: prefix}
}

// Get resolves a secret from the environment.
func (s *EnvStore) Get(_ context.Context, name string) ([]byte, error) {
	v, ok := os.LookupEnv(s.Prefix + envKey(name))
	if !ok {
		return nil, fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}
	return []byte(v), nil
}

func envKey(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
	return mapped
}
