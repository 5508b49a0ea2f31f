package credential

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/deploygate/internal/secret"
)

func TestMaterializeWritesRestrictedArtifact(t *testing.T) {
	store := secret.NewStaticStore(map[string]string{"password": "hunter2", "api-key": "k123"})

	art, err := Materialize(context.Background(), "prod", []string{"password", "api-key"}, store)
	require.NoError(t, err)
	defer func() { _ = art.Release() }()

	info, err := os.Stat(art.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(art.Path())
	require.NoError(t, err)
	assert.Equal(t, "[prod]\napi-key = \"k123\"\npassword = \"hunter2\"\n", string(data))
}

func TestMaterializeEscapesValues(t *testing.T) {
	store := secret.NewStaticStore(map[string]string{
		"password": "pa\"ss\\word\nline2\ttab",
	})

	art, err := Materialize(context.Background(), "prod", []string{"password"}, store)
	require.NoError(t, err)
	defer func() { _ = art.Release() }()

	data, err := os.ReadFile(art.Path())
	require.NoError(t, err)
	assert.Equal(t, "[prod]\npassword = \"pa\\\"ss\\\\word\\nline2\\ttab\"\n", string(data))
}

func TestMaterializeRejectsCollidingRefs(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	store := secret.NewStaticStore(map[string]string{"db.pass": "a", "db_pass": "b"})

	before := tempEntries(t)
	art, err := Materialize(context.Background(), "prod", []string{"db.pass", "db_pass"}, store)
	assert.Nil(t, art)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collide")
	assert.Equal(t, before, tempEntries(t))
}

func TestMaterializeMissingSecretLeavesNoArtifact(t *testing.T) {
	t.Setenv("TMPDIR", t.TempDir())
	store := secret.NewStaticStore(map[string]string{"password": "hunter2"})

	before := tempEntries(t)
	art, err := Materialize(context.Background(), "prod", []string{"password", "missing"}, store)
	assert.Nil(t, art)
	assert.ErrorIs(t, err, secret.ErrNotFound)
	assert.Equal(t, before, tempEntries(t), "no partial artifact directory may remain")
}

func TestMaterializeAccessDenied(t *testing.T) {
	store := secret.NewStaticStore(map[string]string{"password": "hunter2"})
	store.Denied = map[string]bool{"password": true}

	_, err := Materialize(context.Background(), "prod", []string{"password"}, store)
	assert.ErrorIs(t, err, secret.ErrAccessDenied)
}

func TestMaterializeNoRefs(t *testing.T) {
	_, err := Materialize(context.Background(), "prod", nil, secret.NewStaticStore(nil))
	assert.Error(t, err)
}

func TestReleaseRemovesArtifact(t *testing.T) {
	store := secret.NewStaticStore(map[string]string{"password": "hunter2"})

	art, err := Materialize(context.Background(), "prod", []string{"password"}, store)
	require.NoError(t, err)

	path := art.Path()
	require.NoError(t, art.Release())

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	// Idempotent.
	assert.NoError(t, art.Release())
}

// tempEntries counts deploygate run dirs in the temp root.
func tempEntries(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	require.NoError(t, err)
	n := 0
	for _, e := range entries {
		if e.IsDir() && len(e.Name()) > 14 && e.Name()[:14] == "deploygate-run" {
			n++
		}
	}
	return n
}
