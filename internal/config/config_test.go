package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ddbledger "github.com/dwsmith1983/deploygate/internal/ledger/dynamodb"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeConfig(t, `ledger: dynamodb
dynamodb:
  tableName: deploygate
  region: us-east-1
environment: prod
policy:
  allowedRefs:
    - main
    - release/v2
secrets:
  source: aws
  refs:
    - db-password
    - api-token
tool:
  command: /usr/local/bin/deploy
  args: ["--config", "{artifact}"]
  artifactEnv: DEPLOY_CONFIG
  timeoutSeconds: 600
alerts:
  - type: console
telemetry:
  endpoint: localhost:4317
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "dynamodb", cfg.Ledger)
	dc, ok := cfg.DynamoDB.(*ddbledger.Config)
	require.True(t, ok, "DynamoDB config should be *dynamodb.Config")
	assert.Equal(t, "deploygate", dc.TableName)
	assert.Equal(t, "us-east-1", dc.Region)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, []string{"main", "release/v2"}, cfg.Policy.AllowedRefs)
	assert.Equal(t, "aws", cfg.Secrets.Source)
	assert.Len(t, cfg.Secrets.Refs, 2)
	assert.Equal(t, "/usr/local/bin/deploy", cfg.Tool.Command)
	assert.Equal(t, 600, cfg.Tool.TimeoutSeconds)
	assert.Len(t, cfg.Alerts, 1)
	require.NotNil(t, cfg.Telemetry)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.Endpoint)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := writeConfig(t, "invalid: [yaml")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidation_MissingLedger(t *testing.T) {
	dir := writeConfig(t, `environment: prod
policy:
  allowedRefs: [main]
secrets:
  source: env
  refs: [db-password]
tool:
  command: /bin/true
`)
	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ledger is required")
}

func TestValidation_MissingDynamoDBConfig(t *testing.T) {
	dir := writeConfig(t, `ledger: dynamodb
environment: prod
policy:
  allowedRefs: [main]
secrets:
  source: aws
  refs: [db-password]
tool:
  command: /bin/true
`)
	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dynamodb config is required")
}

func TestValidation_NoAllowedRefs(t *testing.T) {
	dir := writeConfig(t, `ledger: memory
environment: prod
policy:
  allowedRefs: []
secrets:
  source: env
  refs: [db-password]
tool:
  command: /bin/true
`)
	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "allowedRefs")
}

func TestValidation_UnknownSecretSource(t *testing.T) {
	dir := writeConfig(t, `ledger: memory
environment: prod
policy:
  allowedRefs: [main]
secrets:
  source: vault
  refs: [db-password]
tool:
  command: /bin/true
`)
	_, err := Load(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "secrets.source")
}
