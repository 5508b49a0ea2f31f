package secret

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvStoreGet(t *testing.T) {
	t.Setenv("DEPLOYGATE_SECRET_DB_PASSWORD", "hunter2")

	store := NewEnvStore("")
	got, err := store.Get(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)
}

func TestEnvStoreMissing(t *testing.T) {
	store := NewEnvStore("")
	_, err := store.Get(context.Background(), "definitely-not-set")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnvStoreCustomPrefix(t *testing.T) {
	t.Setenv("CI_TOKEN", "tok")

	store := NewEnvStore("CI_")
	got, err := store.Get(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, []byte("tok"), got)
}
