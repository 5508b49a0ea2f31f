package secret

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSM struct {
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSM) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[aws.ToString(params.SecretId)]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(v)}, nil
}

func TestSecretsManagerStoreGet(t *testing.T) {
	store := NewSecretsManagerStoreWithClient(&fakeSM{values: map[string]string{"password": "hunter2"}})

	got, err := store.Get(context.Background(), "password")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)
}

func TestSecretsManagerStoreNotFound(t *testing.T) {
	store := NewSecretsManagerStoreWithClient(&fakeSM{values: map[string]string{}})

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSecretsManagerStoreBreakerOpensOnStoreFailure(t *testing.T) {
	fake := &fakeSM{err: errors.New("connection refused")}
	store := NewSecretsManagerStoreWithClient(fake)

	for i := 0; i < 5; i++ {
		_, err := store.Get(context.Background(), "password")
		require.Error(t, err)
	}

	// Breaker is open now: the client must not be called again.
	before := fake.calls
	_, err := store.Get(context.Background(), "password")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, before, fake.calls)
}

func TestSecretsManagerStoreNotFoundDoesNotTrip(t *testing.T) {
	fake := &fakeSM{values: map[string]string{"password": "hunter2"}}
	store := NewSecretsManagerStoreWithClient(fake)

	for i := 0; i < 10; i++ {
		_, err := store.Get(context.Background(), "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	}

	got, err := store.Get(context.Background(), "password")
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), got)
}
