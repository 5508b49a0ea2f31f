package secret

import (
	"context"
	"fmt"
)

var _ Store = (*StaticStore)(nil)

// StaticStore serves secrets from a fixed map. Test use only.
type StaticStore struct {
	Values map[string][]byte
	Denied map[string]bool
}

// NewStaticStore creates a static store from string values.
func NewStaticStore(values map[string]string) *StaticStore {
	m := make(map[string][]byte, len(values))
	for k, v := range values {
		m[k] = []byte(v)
	}
	return &StaticStore{Values: m}
}

// Get returns the configured value, or ErrNotFound / ErrAccessDenied.
func (s *StaticStore) Get(_ context.Context, name string) ([]byte, error) {
	if s.Denied[name] {
		return nil, fmt.Errorf("secret %q: %w", name, ErrAccessDenied)
	}
	v, ok := s.Values[name]
	if !ok {
		return nil, fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}
	return v, nil
}
