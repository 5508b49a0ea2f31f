package types

// PolicyConfig declares which source refs may trigger a deployment.
type PolicyConfig struct {
	AllowedRefs []string `yaml:"allowedRefs" json:"allowedRefs"`
}

// SecretsConfig names the secret store backend and the secret refs a run
// materializes. Refs are names, never values.
type SecretsConfig struct {
	Source string   `yaml:"source" json:"source"` // "aws" or "env"
	Refs   []string `yaml:"refs" json:"refs"`
	Region string   `yaml:"region,omitempty" json:"region,omitempty"`
	Prefix string   `yaml:"prefix,omitempty" json:"prefix,omitempty"` // env source: variable name prefix
}

// ToolConfig describes the external deploy command. The literal "{artifact}"
// in Args is replaced with the materialized artifact path; ArtifactEnv names
// an environment variable that receives the same path.
type ToolConfig struct {
	Command        string            `yaml:"command" json:"command"`
	Args           []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env            map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	ArtifactEnv    string            `yaml:"artifactEnv,omitempty" json:"artifactEnv,omitempty"`
	TimeoutSeconds int               `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`
	WorkDir        string            `yaml:"workDir,omitempty" json:"workDir,omitempty"`
}

// TelemetryConfig enables optional OTLP trace export.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

// ProjectConfig represents the top-level deploygate.yaml configuration.
// Ledger-backend sections are declared as interface{} so the config loader
// can decode them into backend-owned types in a second pass.
type ProjectConfig struct {
	Ledger      string           `yaml:"ledger"`
	DynamoDB    interface{}      `yaml:"dynamodb,omitempty"`
	Environment string           `yaml:"environment"`
	Policy      PolicyConfig     `yaml:"policy"`
	Secrets     SecretsConfig    `yaml:"secrets"`
	Tool        ToolConfig       `yaml:"tool"`
	Alerts      []AlertConfig    `yaml:"alerts,omitempty"`
	Telemetry   *TelemetryConfig `yaml:"telemetry,omitempty"`
}
