package secret

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/sony/gobreaker"
)

// SMAPI is the subset of the Secrets Manager client used by the store.
type SMAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Compile-time interface satisfaction check.
var _ Store = (*SecretsManagerStore)(nil)

// SecretsManagerStore retrieves secrets from AWS Secrets Manager. Lookups go
// through a circuit breaker so a flapping store fails fast instead of holding
// runs open against a dead dependency.
type SecretsManagerStore struct {
	client  SMAPI
	breaker *gobreaker.CircuitBreaker
}

// NewSecretsManagerStore creates a store using the default AWS config chain.
func NewSecretsManagerStore(ctx context.Context, region string) (*SecretsManagerStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewSecretsManagerStoreWithClient(secretsmanager.NewFromConfig(awsCfg)), nil
}

// NewSecretsManagerStoreWithClient creates a store around an existing client.
func NewSecretsManagerStoreWithClient(client SMAPI) *SecretsManagerStore {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "secretsmanager",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// A missing or denied secret is a caller problem, not store health.
			return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccessDenied)
		},
	})
	return &SecretsManagerStore{client: client, breaker: cb}
}

// Get retrieves a secret value by name.
func (s *SecretsManagerStore) Get(ctx context.Context, name string) ([]byte, error) {
	out, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(name),
		})
		if err != nil {
			return nil, classifySMError(name, err)
		}
		if resp.SecretString != nil {
			return []byte(*resp.SecretString), nil
		}
		return resp.SecretBinary, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("secret store circuit open: %w", ErrAccessDenied)
		}
		return nil, err
	}
	return out.([]byte), nil
}

func classifySMError(name string, err error) error {
	var rnf *smtypes.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("secret %q: %w", name, ErrNotFound)
	}
	var ae smithy.APIError
	if errors.As(err, &ae) && ae.ErrorCode() == "AccessDeniedException" {
		return fmt.Errorf("secret %q: %w", name, ErrAccessDenied)
	}
	return fmt.Errorf("fetching secret %q: %w", name, err)
}
